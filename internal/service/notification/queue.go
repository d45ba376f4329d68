package notification

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/pkg/logger"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

const (
	// DefaultCapacity is the hard cap across all priority buckets.
	// Producers must handle rejection; the queue never grows past it.
	DefaultCapacity = 10000

	criticalMaxRetries = 3
	defaultMaxRetries  = 2

	criticalRetryBase = 5 * time.Second
	defaultRetryBase  = 30 * time.Second
	maxRetryDelay     = 5 * time.Minute
)

// Queue is a four-tier priority queue with a delay-ordered retry schedule.
// Enqueue and dequeue use per-bucket locks so producers on unrelated
// priorities never block each other or the dispatch loop.
type Queue struct {
	capacity int64
	total    atomic.Int64

	buckets map[model.NotificationPriority]*bucket
	retry   *retrySchedule

	procMu     sync.Mutex
	processing map[string]bool

	enqueued atomic.Int64
	sent     atomic.Int64
	failed   atomic.Int64
	retried  atomic.Int64
	dropped  atomic.Int64

	metrics *metrics.Metrics
	logger  *logger.Logger
}

type bucket struct {
	mu    sync.Mutex
	items []*model.Notification
}

func NewQueue(capacity int, m *metrics.Metrics, log *logger.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = logger.Nop()
	}
	buckets := make(map[model.NotificationPriority]*bucket, len(model.Priorities))
	for _, p := range model.Priorities {
		buckets[p] = &bucket{}
	}
	return &Queue{
		capacity:   int64(capacity),
		buckets:    buckets,
		retry:      newRetrySchedule(),
		processing: make(map[string]bool),
		metrics:    m,
		logger:     log,
	}
}

// Enqueue admits the notification unless the queue is at capacity.
// Rejection is backpressure, not an error.
func (q *Queue) Enqueue(n *model.Notification) bool {
	if q.total.Add(1) > q.capacity {
		q.total.Add(-1)
		q.logger.Warn("notification queue is full", "capacity", q.capacity)
		if q.metrics != nil {
			q.metrics.NotificationsRejected.Inc()
		}
		return false
	}

	b := q.buckets[n.Priority]
	b.mu.Lock()
	b.items = append(b.items, n)
	depth := len(b.items)
	b.mu.Unlock()

	q.enqueued.Add(1)
	if q.metrics != nil {
		q.metrics.NotificationsEnqueued.WithLabelValues(string(n.Priority)).Inc()
		q.metrics.QueueDepth.WithLabelValues(string(n.Priority)).Set(float64(depth))
	}
	return true
}

// Dequeue returns the next notification in strict priority order:
// critical drains before high, high before medium, medium before low.
// The retry schedule is only consulted when every bucket is empty, so
// sustained fresh traffic can starve retries.
func (q *Queue) Dequeue() *model.Notification {
	for _, p := range model.Priorities {
		b := q.buckets[p]
		b.mu.Lock()
		if len(b.items) > 0 {
			n := b.items[0]
			b.items = b.items[1:]
			depth := len(b.items)
			b.mu.Unlock()
			q.total.Add(-1)
			q.markProcessing(n.ID)
			if q.metrics != nil {
				q.metrics.QueueDepth.WithLabelValues(string(p)).Set(float64(depth))
			}
			return n
		}
		b.mu.Unlock()
	}

	if n := q.retry.popDue(time.Now()); n != nil {
		q.markProcessing(n.ID)
		q.retried.Add(1)
		return n
	}
	return nil
}

func (q *Queue) markProcessing(id string) {
	q.procMu.Lock()
	q.processing[id] = true
	q.procMu.Unlock()
}

func (q *Queue) clearProcessing(id string) {
	q.procMu.Lock()
	delete(q.processing, id)
	q.procMu.Unlock()
}

// MarkSent records successful delivery and releases the notification.
func (q *Queue) MarkSent(id string) {
	q.clearProcessing(id)
	q.sent.Add(1)
}

// MarkDropped releases a notification that will never be delivered
// (expired, or retries exhausted).
func (q *Queue) MarkDropped(id string) {
	q.clearProcessing(id)
	q.dropped.Add(1)
	if q.metrics != nil {
		q.metrics.NotificationsDropped.Inc()
	}
}

// MarkFailed records a delivery failure and, when retry is allowed and
// the budget not exhausted, schedules the notification for redelivery
// with exponential backoff. Returns true if a retry was scheduled;
// false means the notification was dropped.
func (q *Queue) MarkFailed(n *model.Notification, retry bool) bool {
	q.clearProcessing(n.ID)
	q.failed.Add(1)
	if q.metrics != nil {
		q.metrics.NotificationsFailed.Inc()
	}

	if !retry || !q.shouldRetry(n) {
		q.dropped.Add(1)
		if q.metrics != nil {
			q.metrics.NotificationsDropped.Inc()
		}
		q.logger.Warn("dropping notification",
			"notification_id", n.ID, "retries", n.RetryCount)
		return false
	}

	delay := retryDelay(n)
	n.RetryCount++
	q.retry.push(n, time.Now().Add(delay))
	return true
}

func (q *Queue) shouldRetry(n *model.Notification) bool {
	max := defaultMaxRetries
	if n.Priority == model.PriorityCritical {
		max = criticalMaxRetries
	}
	return n.RetryCount < max
}

func retryDelay(n *model.Notification) time.Duration {
	base := defaultRetryBase
	if n.Priority == model.PriorityCritical {
		base = criticalRetryBase
	}
	delay := base << uint(n.RetryCount)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// Stats is a point-in-time snapshot of queue state.
type Stats struct {
	QueueSizes    map[string]int `json:"queue_sizes"`
	TotalQueued   int            `json:"total_queued"`
	Processing    int            `json:"processing"`
	RetryQueueLen int            `json:"retry_queue_size"`
	Enqueued      int64          `json:"enqueued"`
	Sent          int64          `json:"sent"`
	Failed        int64          `json:"failed"`
	Retried       int64          `json:"retried"`
	Dropped       int64          `json:"dropped"`
}

func (q *Queue) Stats() Stats {
	sizes := make(map[string]int, len(model.Priorities))
	total := 0
	for _, p := range model.Priorities {
		b := q.buckets[p]
		b.mu.Lock()
		sizes[string(p)] = len(b.items)
		total += len(b.items)
		b.mu.Unlock()
	}
	q.procMu.Lock()
	processing := len(q.processing)
	q.procMu.Unlock()

	return Stats{
		QueueSizes:    sizes,
		TotalQueued:   total,
		Processing:    processing,
		RetryQueueLen: q.retry.len(),
		Enqueued:      q.enqueued.Load(),
		Sent:          q.sent.Load(),
		Failed:        q.failed.Load(),
		Retried:       q.retried.Load(),
		Dropped:       q.dropped.Load(),
	}
}

// retrySchedule is a min-heap ordered by due time, FIFO among equal due
// times via a sequence number.
type retrySchedule struct {
	mu   sync.Mutex
	h    retryHeap
	next uint64
}

type retryEntry struct {
	n   *model.Notification
	due time.Time
	seq uint64
}

func newRetrySchedule() *retrySchedule {
	return &retrySchedule{}
}

func (s *retrySchedule) push(n *model.Notification, due time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.h, retryEntry{n: n, due: due, seq: s.next})
	s.next++
}

func (s *retrySchedule) popDue(now time.Time) *model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.h) == 0 || s.h[0].due.After(now) {
		return nil
	}
	entry := heap.Pop(&s.h).(retryEntry)
	return entry.n
}

func (s *retrySchedule) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.h)
}

type retryHeap []retryEntry

func (h retryHeap) Len() int { return len(h) }

func (h retryHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h retryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *retryHeap) Push(x any) { *h = append(*h, x.(retryEntry)) }

func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}
