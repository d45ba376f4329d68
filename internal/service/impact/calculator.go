package impact

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/pkg/logger"
)

// Weights of each factor in the final score. Tunable constants; the
// relationship factor is applied multiplicatively on top.
const (
	weightSentiment = 0.3
	weightRelevance = 0.25
	weightMagnitude = 0.2
	weightSource    = 0.15
	weightRecency   = 0.1
)

// Calculator turns per-article, per-company signals into a bounded,
// explainable impact score. Pure computation; safe for concurrent use.
type Calculator struct {
	logger *logger.Logger
}

func NewCalculator(log *logger.Logger) *Calculator {
	if log == nil {
		log = logger.Nop()
	}
	return &Calculator{logger: log}
}

// Calculate produces the impact score for one article/company pair.
func (c *Calculator) Calculate(factors model.ImpactFactors, articleID string, companyID int64) *model.ImpactScore {
	base := c.baseScore(factors)
	sentiment := c.sentimentFactor(factors.SentimentScore, factors.SentimentConfidence)
	relevance := c.relevanceFactor(factors)
	decay := factors.TimeDecayFactor()
	relationship := c.relationshipFactor(factors)

	weighted := base*weightMagnitude +
		sentiment*weightSentiment +
		relevance*weightRelevance +
		factors.SourceCredibility*weightSource +
		decay*weightRecency
	final := model.Clamp01(weighted * relationship)

	confidence := c.confidence(factors)
	impactType := c.impactType(factors)

	return &model.ImpactScore{
		ArticleID:          articleID,
		CompanyID:          companyID,
		BaseScore:          base,
		SentimentFactor:    sentiment,
		RelevanceFactor:    relevance,
		TimeDecayFactor:    decay,
		RelationshipFactor: relationship,
		FinalScore:         final,
		Confidence:         confidence,
		ImpactType:         impactType,
		Explanation:        c.explain(final, factors, impactType),
		CalculatedAt:       time.Now().UTC(),
	}
}

// baseScore blends magnitude, source credibility, and a log-compressed
// mention count so repeated mentions have diminishing returns.
func (c *Calculator) baseScore(f model.ImpactFactors) float64 {
	mentionScore := math.Min(1.0, math.Log(float64(f.MentionCount)+1)/math.Log(10))
	return f.Magnitude.Weight()*0.4 + f.SourceCredibility*0.3 + mentionScore*0.3
}

// sentimentFactor maps distance from neutral onto [0,1]: extreme sentiment
// in either direction drives impact up; polarity is carried separately for
// display.
func (c *Calculator) sentimentFactor(score, confidence float64) float64 {
	var factor float64
	if score > 0.5 {
		factor = (score - 0.5) * 2
	} else {
		factor = (0.5 - score) * 2
	}
	return factor * confidence
}

func (c *Calculator) relevanceFactor(f model.ImpactFactors) float64 {
	relevance := f.RelevanceScore
	if f.IsPrimarySubject {
		relevance = math.Min(1.0, relevance*1.5)
	}
	if f.SectorImpact {
		relevance = math.Min(1.0, relevance*1.2)
	}
	if f.MarketImpact {
		relevance = math.Min(1.0, relevance*1.3)
	}
	return relevance
}

func (c *Calculator) relationshipFactor(f model.ImpactFactors) float64 {
	if f.IsPrimarySubject {
		return 1.0
	}
	return f.Relationship.Weight()
}

// confidence is the unweighted mean of the signal confidences.
func (c *Calculator) confidence(f model.ImpactFactors) float64 {
	primary := 0.7
	if f.IsPrimarySubject {
		primary = 1.0
	}
	parts := []float64{
		f.SentimentConfidence,
		f.SourceCredibility,
		math.Min(1.0, float64(f.MentionCount)/5),
		primary,
	}
	sum := 0.0
	for _, p := range parts {
		sum += p
	}
	return model.Clamp01(sum / float64(len(parts)))
}

func (c *Calculator) impactType(f model.ImpactFactors) model.ImpactType {
	switch {
	case f.IsPrimarySubject:
		return model.ImpactDirect
	case f.Relationship != model.RelationshipNone:
		return model.ImpactIndirect
	case f.SectorImpact:
		return model.ImpactSector
	case f.MarketImpact:
		return model.ImpactMarket
	default:
		return model.ImpactIndirect
	}
}

// explain builds a deterministic audit trail from the same inputs that
// produced the score.
func (c *Calculator) explain(score float64, f model.ImpactFactors, typ model.ImpactType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "impact: %s (%.2f)\n", model.ImpactLevel(score), score)

	typeText := map[model.ImpactType]string{
		model.ImpactDirect:   "direct impact",
		model.ImpactIndirect: "indirect impact",
		model.ImpactSector:   "sector-wide impact",
		model.ImpactMarket:   "market-wide impact",
	}
	fmt.Fprintf(&b, "type: %s\n", typeText[typ])

	if f.IsPrimarySubject {
		b.WriteString("- company is the article's primary subject\n")
	}
	if f.MentionCount > 3 {
		fmt.Fprintf(&b, "- mentioned %d times\n", f.MentionCount)
	}
	if f.SentimentScore > 0.7 {
		b.WriteString("- strongly positive coverage\n")
	} else if f.SentimentScore < 0.3 {
		b.WriteString("- strongly negative coverage\n")
	}
	fmt.Fprintf(&b, "- %s magnitude news", f.Magnitude)

	return b.String()
}

// CalculateBatch scores many pairs, isolating failures per item: a bad
// record is logged and skipped, never aborting the batch.
func (c *Calculator) CalculateBatch(items []BatchItem) []*model.ImpactScore {
	results := make([]*model.ImpactScore, 0, len(items))
	for _, item := range items {
		score, err := c.calculateChecked(item)
		if err != nil {
			c.logger.Error(err, "failed to score item",
				"article_id", item.ArticleID, "company_id", item.CompanyID)
			continue
		}
		results = append(results, score)
	}
	return results
}

// BatchItem pairs the factors with the identifiers they score.
type BatchItem struct {
	Factors   model.ImpactFactors
	ArticleID string
	CompanyID int64
}

func (c *Calculator) calculateChecked(item BatchItem) (*model.ImpactScore, error) {
	if item.ArticleID == "" {
		return nil, fmt.Errorf("missing article id")
	}
	if item.CompanyID == 0 {
		return nil, fmt.Errorf("missing company id")
	}
	return c.Calculate(item.Factors, item.ArticleID, item.CompanyID), nil
}
