package sentiment

import (
	"context"
	"strings"
)

// Label is the polarity bucket reported by an analyzer.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Result is the shape every sentiment backend must produce. Score is in
// [0,1] with 0.5 neutral; Confidence is in [0,1].
type Result struct {
	Label      Label   `json:"label"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Analyzer scores the sentiment of a piece of text. The production
// backend is an external model service; RuleBased is the in-process
// fallback.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// RuleBased is a small lexicon analyzer used when no model backend is
// configured. Its confidence reflects how many cue words it matched.
type RuleBased struct {
	positive []string
	negative []string
}

func NewRuleBased() *RuleBased {
	return &RuleBased{
		positive: []string{
			"surge", "gain", "rally", "record", "growth", "beat", "profit",
			"breakthrough", "upgrade", "partnership", "unveil", "launch",
			"expand", "strong", "soar",
		},
		negative: []string{
			"plunge", "loss", "lawsuit", "recall", "downgrade", "layoff",
			"fraud", "decline", "miss", "bankruptcy", "halt", "probe",
			"weak", "slump", "crash",
		},
	}
}

func (r *RuleBased) Analyze(_ context.Context, text string) (Result, error) {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range r.positive {
		pos += strings.Count(lower, w)
	}
	for _, w := range r.negative {
		neg += strings.Count(lower, w)
	}

	total := pos + neg
	if total == 0 {
		return Result{Label: LabelNeutral, Score: 0.5, Confidence: 0.3}, nil
	}

	// Score drifts from neutral toward whichever polarity dominates.
	score := 0.5 + 0.5*float64(pos-neg)/float64(total)
	label := LabelNeutral
	switch {
	case score > 0.6:
		label = LabelPositive
	case score < 0.4:
		label = LabelNegative
	}

	confidence := float64(total) / 10
	if confidence > 0.9 {
		confidence = 0.9
	}
	if confidence < 0.4 {
		confidence = 0.4
	}

	return Result{Label: label, Score: score, Confidence: confidence}, nil
}
