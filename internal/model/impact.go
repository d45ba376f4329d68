package model

import (
	"fmt"
	"math"
	"time"
)

// ImpactType classifies how a company is affected by an article.
type ImpactType string

const (
	ImpactDirect   ImpactType = "direct"
	ImpactIndirect ImpactType = "indirect"
	ImpactSector   ImpactType = "sector"
	ImpactMarket   ImpactType = "market"
)

// RelationshipType describes how a company relates to an article's primary
// subject.
type RelationshipType string

const (
	RelationshipNone       RelationshipType = ""
	RelationshipCompetitor RelationshipType = "competitor"
	RelationshipPartner    RelationshipType = "partner"
	RelationshipSupplier   RelationshipType = "supplier"
	RelationshipCustomer   RelationshipType = "customer"
	RelationshipInvestor   RelationshipType = "investor"
	RelationshipSubsidiary RelationshipType = "subsidiary"
)

// ParseRelationshipType validates a stored relationship value. Unknown
// values are rejected at the storage boundary rather than deep in scoring.
func ParseRelationshipType(s string) (RelationshipType, error) {
	switch RelationshipType(s) {
	case RelationshipNone, RelationshipCompetitor, RelationshipPartner,
		RelationshipSupplier, RelationshipCustomer, RelationshipInvestor,
		RelationshipSubsidiary:
		return RelationshipType(s), nil
	}
	return RelationshipNone, fmt.Errorf("unknown relationship type: %q", s)
}

// relationshipWeights dampen indirect impacts. Subsidiaries track their
// parent almost one-to-one; investors are the loosest coupling.
var relationshipWeights = map[RelationshipType]float64{
	RelationshipCompetitor: 0.8,
	RelationshipSubsidiary: 0.9,
	RelationshipPartner:    0.7,
	RelationshipSupplier:   0.6,
	RelationshipCustomer:   0.6,
	RelationshipInvestor:   0.5,
}

// Weight returns the dampening factor for the relationship, 0.5 when the
// relationship is unknown.
func (r RelationshipType) Weight() float64 {
	if w, ok := relationshipWeights[r]; ok {
		return w
	}
	return 0.5
}

// MagnitudeClass buckets how big a piece of news is.
type MagnitudeClass string

const (
	MagnitudeMinor    MagnitudeClass = "minor"
	MagnitudeModerate MagnitudeClass = "moderate"
	MagnitudeMajor    MagnitudeClass = "major"
	MagnitudeCritical MagnitudeClass = "critical"
)

func ParseMagnitudeClass(s string) (MagnitudeClass, error) {
	switch MagnitudeClass(s) {
	case MagnitudeMinor, MagnitudeModerate, MagnitudeMajor, MagnitudeCritical:
		return MagnitudeClass(s), nil
	}
	return "", fmt.Errorf("unknown magnitude class: %q", s)
}

var magnitudeWeights = map[MagnitudeClass]float64{
	MagnitudeMinor:    0.3,
	MagnitudeModerate: 0.6,
	MagnitudeMajor:    0.9,
	MagnitudeCritical: 1.0,
}

func (m MagnitudeClass) Weight() float64 {
	if w, ok := magnitudeWeights[m]; ok {
		return w
	}
	return 0.5
}

// ImpactFactors holds every signal the scorer consumes for one
// article/company pair. Immutable once constructed.
type ImpactFactors struct {
	SentimentScore      float64
	SentimentConfidence float64
	RelevanceScore      float64

	MentionCount     int
	IsPrimarySubject bool
	Relationship     RelationshipType

	PublishedAt time.Time
	AnalyzedAt  time.Time

	SourceCredibility float64
	Magnitude         MagnitudeClass

	SectorImpact bool
	MarketImpact bool
}

// TimeDecayFactor decays from 1.0 at publish time to a floor of 0.3:
// 0.7 at 24h, 0.5 at 72h, 0.3 at one week. Impact never fully vanishes,
// since indirect market effects can surface later.
func (f ImpactFactors) TimeDecayFactor() float64 {
	hours := f.AnalyzedAt.Sub(f.PublishedAt).Hours()
	switch {
	case hours <= 0:
		return 1.0
	case hours <= 24:
		return 1.0 - 0.3*hours/24
	case hours <= 72:
		return 0.7 - 0.2*(hours-24)/48
	case hours <= 168:
		return 0.5 - 0.2*(hours-72)/96
	default:
		return 0.3
	}
}

// ImpactScore is the scoring output for one article/company pair.
// Re-scoring produces a new record; existing ones are never mutated.
type ImpactScore struct {
	ArticleID string `db:"article_id" json:"article_id"`
	CompanyID int64  `db:"company_id" json:"company_id"`

	BaseScore          float64 `db:"base_score" json:"base_score"`
	SentimentFactor    float64 `db:"sentiment_factor" json:"sentiment_factor"`
	RelevanceFactor    float64 `db:"relevance_factor" json:"relevance_factor"`
	TimeDecayFactor    float64 `db:"time_decay_factor" json:"time_decay_factor"`
	RelationshipFactor float64 `db:"relationship_factor" json:"relationship_factor"`

	// FinalScore and Confidence are always clamped to [0,1].
	FinalScore float64 `db:"final_score" json:"final_score"`
	Confidence float64 `db:"confidence" json:"confidence"`

	ImpactType   ImpactType `db:"impact_type" json:"impact_type"`
	Explanation  string     `db:"explanation" json:"explanation"`
	CalculatedAt time.Time  `db:"calculated_at" json:"calculated_at"`
}

// Clamp01 bounds a score to [0,1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ImpactLevel buckets a final score for display and explanations.
func ImpactLevel(score float64) string {
	switch {
	case score >= 0.8:
		return "very high"
	case score >= 0.6:
		return "high"
	case score >= 0.4:
		return "moderate"
	case score >= 0.2:
		return "low"
	default:
		return "very low"
	}
}
