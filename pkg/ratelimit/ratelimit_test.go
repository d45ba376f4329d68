package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainKey(t *testing.T) {
	assert.Equal(t, "example.com", DomainKey("https://Example.com/path?q=1"))
	assert.Equal(t, "news.google.com", DomainKey("https://news.google.com/rss"))
	assert.Equal(t, "default", DomainKey("not a url"))
}

func TestLimitForOverrides(t *testing.T) {
	l := NewLimiter(DefaultConfig())

	assert.Equal(t, 100, l.limitFor("https://news.google.com/rss", "news.google.com").Requests)
	assert.Equal(t, 30, l.limitFor("https://example.com/feed.xml", "example.com").Requests)
	assert.Equal(t, 30, l.limitFor("https://rss.example.com/a", "rss.example.com").Requests)
	assert.Equal(t, 60, l.limitFor("https://example.com/story", "example.com").Requests)
}

func TestWaitIfNeededUnderBudget(t *testing.T) {
	l := NewLimiter(Config{Default: Limit{Requests: 5, Window: time.Minute}})

	for i := 0; i < 5; i++ {
		wait, err := l.WaitIfNeeded(context.Background(), "https://example.com/story")
		require.NoError(t, err)
		assert.Zero(t, wait)
	}
}

func TestWaitIfNeededBlocksWhenExhausted(t *testing.T) {
	l := NewLimiter(Config{Default: Limit{Requests: 2, Window: 100 * time.Millisecond}})
	ctx := context.Background()

	_, err := l.WaitIfNeeded(ctx, "https://example.com/a")
	require.NoError(t, err)
	_, err = l.WaitIfNeeded(ctx, "https://example.com/b")
	require.NoError(t, err)

	start := time.Now()
	wait, err := l.WaitIfNeeded(ctx, "https://example.com/c")
	require.NoError(t, err)
	assert.Greater(t, wait, time.Duration(0))
	assert.GreaterOrEqual(t, time.Since(start), wait)
}

func TestWaitIfNeededRespectsContext(t *testing.T) {
	l := NewLimiter(Config{Default: Limit{Requests: 1, Window: time.Hour}})

	_, err := l.WaitIfNeeded(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.WaitIfNeeded(ctx, "https://example.com/b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDomainsDoNotShareBudget(t *testing.T) {
	l := NewLimiter(Config{Default: Limit{Requests: 1, Window: time.Hour}})
	ctx := context.Background()

	_, err := l.WaitIfNeeded(ctx, "https://a.example.com/x")
	require.NoError(t, err)

	wait, err := l.WaitIfNeeded(ctx, "https://b.example.com/x")
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestStatsAndReset(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.WaitIfNeeded(ctx, "https://example.com/story")
		require.NoError(t, err)
	}

	stats := l.Stats()
	require.Contains(t, stats, "example.com")
	assert.Equal(t, 3, stats["example.com"].RecentRequests)
	assert.Equal(t, 60, stats["example.com"].Limit)
	assert.InDelta(t, 5.0, stats["example.com"].UsagePercent, 0.01)

	l.ResetDomain("example.com")
	assert.Zero(t, l.Stats()["example.com"].RecentRequests)
}

func TestHistoryCapped(t *testing.T) {
	l := NewLimiter(Config{Default: Limit{Requests: 5000, Window: time.Hour}})
	ctx := context.Background()

	for i := 0; i < maxHistoryPerDomain+50; i++ {
		_, err := l.WaitIfNeeded(ctx, "https://example.com/story")
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, l.Stats()["example.com"].RecentRequests, maxHistoryPerDomain)
}
