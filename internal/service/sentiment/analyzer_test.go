package sentiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleBasedPolarity(t *testing.T) {
	a := NewRuleBased()
	ctx := context.Background()

	pos, err := a.Analyze(ctx, "Shares surge to record high on strong profit growth")
	require.NoError(t, err)
	assert.Equal(t, LabelPositive, pos.Label)
	assert.Greater(t, pos.Score, 0.6)

	neg, err := a.Analyze(ctx, "Company faces lawsuit and recall after fraud probe")
	require.NoError(t, err)
	assert.Equal(t, LabelNegative, neg.Label)
	assert.Less(t, neg.Score, 0.4)

	neutral, err := a.Analyze(ctx, "The meeting is scheduled for Tuesday")
	require.NoError(t, err)
	assert.Equal(t, LabelNeutral, neutral.Label)
	assert.Equal(t, 0.5, neutral.Score)
}

func TestRuleBasedBounds(t *testing.T) {
	a := NewRuleBased()
	res, err := a.Analyze(context.Background(),
		"surge surge surge gain gain rally rally record record growth beat profit soar strong")
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Score, 1.0)
	assert.LessOrEqual(t, res.Confidence, 0.9)
	assert.GreaterOrEqual(t, res.Confidence, 0.4)
}
