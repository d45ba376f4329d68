package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeromwolf/FluxNews/internal/model"
)

func testNotification(priority model.NotificationPriority) *model.Notification {
	return model.NewNotification("user-1", model.NotificationHighImpactNews,
		priority, "title", "message")
}

func TestDequeueStrictPriorityOrder(t *testing.T) {
	q := NewQueue(10, nil, nil)

	low := testNotification(model.PriorityLow)
	critical := testNotification(model.PriorityCritical)
	medium := testNotification(model.PriorityMedium)
	high := testNotification(model.PriorityHigh)

	// Enqueue order must not matter.
	require.True(t, q.Enqueue(low))
	require.True(t, q.Enqueue(critical))
	require.True(t, q.Enqueue(medium))
	require.True(t, q.Enqueue(high))

	assert.Same(t, critical, q.Dequeue())
	assert.Same(t, high, q.Dequeue())
	assert.Same(t, medium, q.Dequeue())
	assert.Same(t, low, q.Dequeue())
	assert.Nil(t, q.Dequeue())
}

func TestDequeueFIFOWithinPriority(t *testing.T) {
	q := NewQueue(10, nil, nil)

	first := testNotification(model.PriorityHigh)
	second := testNotification(model.PriorityHigh)
	require.True(t, q.Enqueue(first))
	require.True(t, q.Enqueue(second))

	assert.Same(t, first, q.Dequeue())
	assert.Same(t, second, q.Dequeue())
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(2, nil, nil)

	assert.True(t, q.Enqueue(testNotification(model.PriorityLow)))
	assert.True(t, q.Enqueue(testNotification(model.PriorityLow)))
	assert.False(t, q.Enqueue(testNotification(model.PriorityCritical)))

	// Draining frees capacity again.
	require.NotNil(t, q.Dequeue())
	assert.True(t, q.Enqueue(testNotification(model.PriorityCritical)))
}

func TestMarkFailedSchedulesRetry(t *testing.T) {
	q := NewQueue(10, nil, nil)
	n := testNotification(model.PriorityHigh)

	scheduled := q.MarkFailed(n, true)
	assert.True(t, scheduled)
	assert.Equal(t, 1, n.RetryCount)
	assert.Equal(t, 1, q.Stats().RetryQueueLen)

	// Not due yet, so nothing to dequeue.
	assert.Nil(t, q.Dequeue())
}

func TestMarkFailedWithoutRetryDrops(t *testing.T) {
	q := NewQueue(10, nil, nil)
	n := testNotification(model.PriorityHigh)

	assert.False(t, q.MarkFailed(n, false))
	assert.Equal(t, int64(1), q.Stats().Dropped)
	assert.Zero(t, q.Stats().RetryQueueLen)
}

func TestRetryBudgetByPriority(t *testing.T) {
	q := NewQueue(10, nil, nil)

	critical := testNotification(model.PriorityCritical)
	assert.True(t, q.MarkFailed(critical, true))
	assert.True(t, q.MarkFailed(critical, true))
	assert.True(t, q.MarkFailed(critical, true))
	assert.False(t, q.MarkFailed(critical, true), "critical retries cap at 3")

	medium := testNotification(model.PriorityMedium)
	assert.True(t, q.MarkFailed(medium, true))
	assert.True(t, q.MarkFailed(medium, true))
	assert.False(t, q.MarkFailed(medium, true), "non-critical retries cap at 2")
}

func TestRetryDelayBackoff(t *testing.T) {
	critical := testNotification(model.PriorityCritical)
	assert.Equal(t, 5*time.Second, retryDelay(critical))
	critical.RetryCount = 1
	assert.Equal(t, 10*time.Second, retryDelay(critical))
	critical.RetryCount = 2
	assert.Equal(t, 20*time.Second, retryDelay(critical))

	normal := testNotification(model.PriorityHigh)
	assert.Equal(t, 30*time.Second, retryDelay(normal))
	normal.RetryCount = 1
	assert.Equal(t, time.Minute, retryDelay(normal))

	// Delay is capped regardless of retry count.
	normal.RetryCount = 10
	assert.Equal(t, 5*time.Minute, retryDelay(normal))
}

func TestRetryConsultedOnlyWhenBucketsEmpty(t *testing.T) {
	q := NewQueue(10, nil, nil)

	retried := testNotification(model.PriorityCritical)
	q.retry.push(retried, time.Now().Add(-time.Second))

	fresh := testNotification(model.PriorityLow)
	require.True(t, q.Enqueue(fresh))

	// Fresh traffic wins even at a lower priority.
	assert.Same(t, fresh, q.Dequeue())
	assert.Same(t, retried, q.Dequeue())
}

func TestRetryScheduleFIFOAmongDue(t *testing.T) {
	q := NewQueue(10, nil, nil)

	due := time.Now().Add(-time.Second)
	first := testNotification(model.PriorityHigh)
	second := testNotification(model.PriorityHigh)
	q.retry.push(first, due)
	q.retry.push(second, due)

	assert.Same(t, first, q.Dequeue())
	assert.Same(t, second, q.Dequeue())
}

func TestStatsCounters(t *testing.T) {
	q := NewQueue(10, nil, nil)

	n := testNotification(model.PriorityHigh)
	require.True(t, q.Enqueue(n))
	require.NotNil(t, q.Dequeue())
	q.MarkSent(n.ID)

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Enqueued)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Zero(t, stats.Processing)
	assert.Zero(t, stats.TotalQueued)
}
