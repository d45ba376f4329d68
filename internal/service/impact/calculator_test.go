package impact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeromwolf/FluxNews/internal/model"
)

func baseFactors() model.ImpactFactors {
	now := time.Now().UTC()
	return model.ImpactFactors{
		SentimentScore:      0.5,
		SentimentConfidence: 0.8,
		RelevanceScore:      0.5,
		MentionCount:        2,
		Magnitude:           model.MagnitudeModerate,
		SourceCredibility:   0.7,
		PublishedAt:         now,
		AnalyzedAt:          now,
	}
}

func TestCalculateBounded(t *testing.T) {
	c := NewCalculator(nil)

	extremes := []model.ImpactFactors{
		{},
		{
			SentimentScore:      1.0,
			SentimentConfidence: 1.0,
			RelevanceScore:      1.0,
			MentionCount:        100,
			IsPrimarySubject:    true,
			Magnitude:           model.MagnitudeCritical,
			SourceCredibility:   1.0,
			SectorImpact:        true,
			MarketImpact:        true,
			PublishedAt:         time.Now(),
			AnalyzedAt:          time.Now(),
		},
	}
	for _, f := range extremes {
		score := c.Calculate(f, "article-1", 1)
		assert.GreaterOrEqual(t, score.FinalScore, 0.0)
		assert.LessOrEqual(t, score.FinalScore, 1.0)
		assert.GreaterOrEqual(t, score.Confidence, 0.0)
		assert.LessOrEqual(t, score.Confidence, 1.0)
	}
}

func TestTimeDecay(t *testing.T) {
	now := time.Now().UTC()
	decayAt := func(hours float64) float64 {
		f := model.ImpactFactors{
			PublishedAt: now.Add(-time.Duration(hours * float64(time.Hour))),
			AnalyzedAt:  now,
		}
		return f.TimeDecayFactor()
	}

	assert.Equal(t, 1.0, decayAt(0))
	assert.InDelta(t, 0.7, decayAt(24), 0.01)
	assert.InDelta(t, 0.5, decayAt(72), 0.01)
	assert.InDelta(t, 0.3, decayAt(168), 0.01)
	assert.Equal(t, 0.3, decayAt(1000))

	// Monotonically non-increasing over the first week.
	prev := decayAt(0)
	for h := 1.0; h <= 200; h++ {
		cur := decayAt(h)
		assert.LessOrEqual(t, cur, prev, "decay rose at hour %v", h)
		prev = cur
	}
}

func TestRelationshipDampening(t *testing.T) {
	c := NewCalculator(nil)

	f := baseFactors()
	f.SentimentScore = 0.9
	f.Magnitude = model.MagnitudeMajor

	direct := f
	direct.IsPrimarySubject = true

	scores := map[model.RelationshipType]float64{}
	for _, rel := range []model.RelationshipType{
		model.RelationshipSubsidiary,
		model.RelationshipCompetitor,
		model.RelationshipPartner,
		model.RelationshipSupplier,
		model.RelationshipInvestor,
	} {
		indirect := f
		indirect.Relationship = rel
		scores[rel] = c.Calculate(indirect, "article-1", 1).FinalScore
	}

	directScore := c.Calculate(direct, "article-1", 1).FinalScore
	for rel, score := range scores {
		assert.Less(t, score, directScore, "relationship %s should dampen", rel)
	}

	assert.Greater(t, scores[model.RelationshipSubsidiary], scores[model.RelationshipCompetitor])
	assert.Greater(t, scores[model.RelationshipCompetitor], scores[model.RelationshipPartner])
	assert.Greater(t, scores[model.RelationshipPartner], scores[model.RelationshipSupplier])
	assert.Greater(t, scores[model.RelationshipSupplier], scores[model.RelationshipInvestor])
}

func TestImpactTypeClassification(t *testing.T) {
	c := NewCalculator(nil)

	f := baseFactors()
	f.IsPrimarySubject = true
	assert.Equal(t, model.ImpactDirect, c.Calculate(f, "a", 1).ImpactType)

	f = baseFactors()
	f.Relationship = model.RelationshipCompetitor
	assert.Equal(t, model.ImpactIndirect, c.Calculate(f, "a", 1).ImpactType)

	f = baseFactors()
	f.SectorImpact = true
	assert.Equal(t, model.ImpactSector, c.Calculate(f, "a", 1).ImpactType)

	f = baseFactors()
	f.MarketImpact = true
	assert.Equal(t, model.ImpactMarket, c.Calculate(f, "a", 1).ImpactType)
}

func TestNeutralSentimentContributesNothing(t *testing.T) {
	c := NewCalculator(nil)

	neutral := baseFactors()
	neutral.SentimentScore = 0.5

	negative := neutral
	negative.SentimentScore = 0.1

	positive := neutral
	positive.SentimentScore = 0.9

	neutralScore := c.Calculate(neutral, "a", 1).FinalScore
	assert.Greater(t, c.Calculate(negative, "a", 1).FinalScore, neutralScore)
	assert.Greater(t, c.Calculate(positive, "a", 1).FinalScore, neutralScore)
}

func TestHighImpactScenario(t *testing.T) {
	c := NewCalculator(nil)

	// Critical recall news about the primary subject from a top outlet.
	f := model.ImpactFactors{
		SentimentScore:      0.1,
		SentimentConfidence: 0.9,
		RelevanceScore:      0.8,
		MentionCount:        6,
		IsPrimarySubject:    true,
		Magnitude:           model.MagnitudeCritical,
		SourceCredibility:   0.9,
		PublishedAt:         time.Now().Add(-time.Hour),
		AnalyzedAt:          time.Now(),
	}
	score := c.Calculate(f, "article-recall", 42)

	assert.GreaterOrEqual(t, score.FinalScore, 0.6)
	assert.Equal(t, model.ImpactDirect, score.ImpactType)
	assert.Contains(t, score.Explanation, "primary subject")
	assert.Contains(t, score.Explanation, "strongly negative coverage")
}

func TestCalculateBatchSkipsBadItems(t *testing.T) {
	c := NewCalculator(nil)

	items := []BatchItem{
		{Factors: baseFactors(), ArticleID: "a1", CompanyID: 1},
		{Factors: baseFactors(), ArticleID: "", CompanyID: 2},
		{Factors: baseFactors(), ArticleID: "a3", CompanyID: 0},
		{Factors: baseFactors(), ArticleID: "a4", CompanyID: 4},
	}

	scores := c.CalculateBatch(items)
	require.Len(t, scores, 2)
	assert.Equal(t, "a1", scores[0].ArticleID)
	assert.Equal(t, "a4", scores[1].ArticleID)
}
