package impact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
	"github.com/jeromwolf/FluxNews/internal/service/sentiment"
	"github.com/jeromwolf/FluxNews/pkg/logger"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

// Notifier is the downstream trigger: the notification service fans a
// high-impact score out to every user watching the company.
type Notifier interface {
	HighImpactNotification(ctx context.Context, article *model.Article, company *model.Company, impactScore float64) error
}

// sourceCredibility maps known outlets onto a [0,1] trust weight.
var sourceCredibility = map[string]float64{
	"reuters":         0.9,
	"bloomberg":       0.9,
	"yonhap":          0.85,
	"korea herald":    0.8,
	"financial times": 0.85,
	"wsj":             0.85,
}

const defaultCredibility = 0.5

// criticalCues and majorCues bucket an article's magnitude from its text.
var criticalCues = []string{"bankruptcy", "fraud", "merger", "acquisition", "recall", "delisting"}
var majorCues = []string{"lawsuit", "earnings", "layoff", "unveil", "launch", "investigation", "partnership"}

// Pipeline analyzes each admitted article against the company graph and
// produces per-company impact scores.
type Pipeline struct {
	calculator *Calculator
	analyzer   sentiment.Analyzer
	companies  repository.CompanyRepository
	articles   repository.ArticleRepository
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewPipeline(
	calculator *Calculator,
	analyzer sentiment.Analyzer,
	companies repository.CompanyRepository,
	articles repository.ArticleRepository,
	notifier Notifier,
	m *metrics.Metrics,
	log *logger.Logger,
) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		calculator: calculator,
		analyzer:   analyzer,
		companies:  companies,
		articles:   articles,
		notifier:   notifier,
		metrics:    m,
		logger:     log,
	}
}

// AnalyzeArticle scores one article against every company it mentions,
// plus the direct relations of those companies. Scores are persisted and
// high-impact ones are handed to the notifier.
func (p *Pipeline) AnalyzeArticle(ctx context.Context, article *model.Article) ([]*model.ImpactScore, error) {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.ImpactScoringLatency)
		defer timer.ObserveDuration()
	}

	sentimentResult, err := p.analyzer.Analyze(ctx, article.Title+" "+article.Content())
	if err != nil {
		return nil, fmt.Errorf("sentiment analysis failed for article %s: %w", article.ID, err)
	}

	companies, err := p.companies.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}

	now := time.Now().UTC()
	credibility := credibilityFor(article.Source)
	magnitude := classifyMagnitude(article)

	byID := make(map[int64]*model.Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}

	var scores []*model.ImpactScore
	direct := make(map[int64]*model.ImpactScore)

	for _, company := range companies {
		mentions, inTitle := countMentions(article, company)
		if mentions == 0 {
			continue
		}

		factors := model.ImpactFactors{
			SentimentScore:      sentimentResult.Score,
			SentimentConfidence: sentimentResult.Confidence,
			RelevanceScore:      relevanceScore(mentions, inTitle),
			MentionCount:        mentions,
			IsPrimarySubject:    inTitle,
			Relationship:        model.RelationshipNone,
			PublishedAt:         article.PublishedAt,
			AnalyzedAt:          now,
			SourceCredibility:   credibility,
			Magnitude:           magnitude,
		}

		score := p.calculator.Calculate(factors, article.ID, company.ID)
		scores = append(scores, score)
		direct[company.ID] = score
		if p.metrics != nil {
			p.metrics.ImpactScoresComputed.Inc()
		}
	}

	// Ripple direct impacts through the company graph: a mentioned
	// company's relations get a dampened, relationship-weighted score.
	for companyID, directScore := range direct {
		relations, err := p.companies.RelatedCompanies(ctx, companyID)
		if err != nil {
			p.logger.Error(err, "failed to load relations", "company_id", companyID)
			if p.metrics != nil {
				p.metrics.ImpactScoringErrors.Inc()
			}
			continue
		}
		for _, rel := range relations {
			if _, mentioned := direct[rel.RelatedID]; mentioned {
				continue
			}
			factors := model.ImpactFactors{
				SentimentScore:      sentimentResult.Score,
				SentimentConfidence: sentimentResult.Confidence,
				RelevanceScore:      directScore.RelevanceFactor * 0.5,
				MentionCount:        0,
				IsPrimarySubject:    false,
				Relationship:        rel.Type,
				PublishedAt:         article.PublishedAt,
				AnalyzedAt:          now,
				SourceCredibility:   credibility,
				Magnitude:           magnitude,
			}
			scores = append(scores, p.calculator.Calculate(factors, article.ID, rel.RelatedID))
			if p.metrics != nil {
				p.metrics.ImpactScoresComputed.Inc()
			}
		}
	}

	if len(scores) == 0 {
		return nil, nil
	}

	if err := p.articles.SaveImpactScores(ctx, scores); err != nil {
		p.logger.Error(err, "failed to persist impact scores", "article_id", article.ID)
	}

	if p.notifier != nil {
		for _, score := range scores {
			company := byID[score.CompanyID]
			if company == nil {
				continue
			}
			if err := p.notifier.HighImpactNotification(ctx, article, company, score.FinalScore); err != nil {
				p.logger.Error(err, "high impact trigger failed",
					"article_id", article.ID, "company_id", score.CompanyID)
			}
		}
	}

	return scores, nil
}

// AnalyzeBatch scores a batch of articles, isolating failures per item.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, articles []*model.Article) []*model.ImpactScore {
	var all []*model.ImpactScore
	for _, article := range articles {
		scores, err := p.AnalyzeArticle(ctx, article)
		if err != nil {
			p.logger.Error(err, "skipping article", "article_id", article.ID)
			if p.metrics != nil {
				p.metrics.ImpactScoringErrors.Inc()
			}
			continue
		}
		all = append(all, scores...)
	}
	return all
}

func credibilityFor(source string) float64 {
	if w, ok := sourceCredibility[strings.ToLower(source)]; ok {
		return w
	}
	return defaultCredibility
}

func classifyMagnitude(article *model.Article) model.MagnitudeClass {
	text := strings.ToLower(article.Title + " " + article.Content())
	for _, cue := range criticalCues {
		if strings.Contains(text, cue) {
			return model.MagnitudeCritical
		}
	}
	for _, cue := range majorCues {
		if strings.Contains(text, cue) {
			return model.MagnitudeMajor
		}
	}
	return model.MagnitudeModerate
}

// countMentions counts how often any of the company's names appear, and
// whether one appears in the title (making it the primary subject).
func countMentions(article *model.Article, company *model.Company) (int, bool) {
	title := strings.ToLower(article.Title)
	body := strings.ToLower(article.Content())

	names := append([]string{company.Name, company.Ticker}, company.Aliases...)
	mentions := 0
	inTitle := false
	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if len(needle) < 2 {
			continue
		}
		mentions += strings.Count(title, needle) + strings.Count(body, needle)
		if strings.Contains(title, needle) {
			inTitle = true
		}
	}
	return mentions, inTitle
}

// relevanceScore is a bounded heuristic from mention density; the
// calculator applies the primary-subject boost itself.
func relevanceScore(mentions int, inTitle bool) float64 {
	score := 0.3 + 0.1*float64(mentions)
	if inTitle {
		score += 0.2
	}
	return model.Clamp01(score)
}
