package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func hourPtr(h int) *int { return &h }

func TestShouldSendQuietHours(t *testing.T) {
	s := DefaultSettings("user-1")
	s.QuietHoursStart = hourPtr(22)
	s.QuietHoursEnd = hourPtr(23)

	// Inside the window only high-impact news passes.
	assert.True(t, s.ShouldSend(NotificationHighImpactNews, 22))
	assert.False(t, s.ShouldSend(NotificationSentimentAlert, 22))
	assert.False(t, s.ShouldSend(NotificationMarketAlert, 22))

	// Outside the window everything enabled passes.
	assert.True(t, s.ShouldSend(NotificationSentimentAlert, 23))
	assert.True(t, s.ShouldSend(NotificationSentimentAlert, 10))
}

func TestShouldSendDisabled(t *testing.T) {
	s := DefaultSettings("user-1")
	s.Enabled = false
	assert.False(t, s.ShouldSend(NotificationHighImpactNews, 10))

	s = DefaultSettings("user-1")
	s.TypeSettings[NotificationSentimentAlert] = false
	assert.False(t, s.ShouldSend(NotificationSentimentAlert, 10))
	assert.True(t, s.ShouldSend(NotificationHighImpactNews, 10))
}

func TestShouldSendUnknownTypeDefaultsEnabled(t *testing.T) {
	s := DefaultSettings("user-1")
	delete(s.TypeSettings, NotificationSystem)
	assert.True(t, s.ShouldSend(NotificationSystem, 10))
}

func TestNormalizeClamps(t *testing.T) {
	s := DefaultSettings("user-1")
	s.ImpactThreshold = 1.7
	s.SentimentChangeThreshold = -0.4
	s.QuietHoursStart = hourPtr(-3)
	s.QuietHoursEnd = hourPtr(99)

	s.Normalize()
	assert.Equal(t, 1.0, s.ImpactThreshold)
	assert.Equal(t, 0.0, s.SentimentChangeThreshold)
	assert.Equal(t, 0, *s.QuietHoursStart)
	assert.Equal(t, 23, *s.QuietHoursEnd)
}

func TestApplyPatchMergesOnlySetFields(t *testing.T) {
	s := DefaultSettings("user-1")
	threshold := 0.9
	s.Apply(SettingsPatch{
		ImpactThreshold: &threshold,
		ChannelSettings: map[NotificationChannel]bool{ChannelEmail: true},
	})

	assert.Equal(t, 0.9, s.ImpactThreshold)
	assert.True(t, s.ChannelSettings[ChannelEmail])
	// Untouched fields keep their defaults.
	assert.Equal(t, 0.3, s.SentimentChangeThreshold)
	assert.True(t, s.ChannelSettings[ChannelWebSocket])
	assert.True(t, s.Enabled)
}
