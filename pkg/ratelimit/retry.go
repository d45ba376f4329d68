package ratelimit

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"syscall"
	"time"

	apperrors "github.com/jeromwolf/FluxNews/pkg/errors"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

// Failure classes tallied for observability.
const (
	ClassTimeout   = "timeout"
	ClassTransport = "transport"
	ClassOther     = "other"
	ClassExhausted = "max_retries_exceeded"
)

// RetryHandler retries transient network failures with exponential backoff.
// Anything that is not a timeout or transport error propagates immediately.
type RetryHandler struct {
	maxRetries    int
	backoffFactor float64
	metrics       *metrics.Metrics

	mu    sync.Mutex
	stats map[string]int
}

func NewRetryHandler(maxRetries int, backoffFactor float64) *RetryHandler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoffFactor <= 1 {
		backoffFactor = 2.0
	}
	return &RetryHandler{
		maxRetries:    maxRetries,
		backoffFactor: backoffFactor,
		stats:         make(map[string]int),
	}
}

// SetMetrics attaches the pipeline counters; every recorded failure class
// increments RetryAttempts.
func (h *RetryHandler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// ExecuteWithRetry runs fn up to maxRetries times, backing off
// backoffFactor^attempt seconds between attempts. The last transient error
// is returned once retries are exhausted.
func (h *RetryHandler) ExecuteWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < h.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		class := classify(err)
		if class == ClassOther {
			h.record(ClassOther)
			return err
		}
		h.record(class)
		lastErr = err

		if attempt < h.maxRetries-1 {
			backoff := time.Duration(math.Pow(h.backoffFactor, float64(attempt)) * float64(time.Second))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	h.record(ClassExhausted)
	return lastErr
}

func classify(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassTransport
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return ClassTransport
	}
	if apperrors.IsTransient(err) {
		return ClassTransport
	}
	return ClassOther
}

func (h *RetryHandler) record(class string) {
	h.mu.Lock()
	h.stats[class]++
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.RetryAttempts.WithLabelValues(class).Inc()
	}
}

// Stats returns a copy of the per-class retry counters.
func (h *RetryHandler) Stats() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.stats))
	for k, v := range h.stats {
		out[k] = v
	}
	return out
}
