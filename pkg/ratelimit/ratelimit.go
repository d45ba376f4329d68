package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

// maxHistoryPerDomain caps the per-domain timestamp history so a chatty
// domain cannot grow memory without bound.
const maxHistoryPerDomain = 1000

// Limit is a request budget over a trailing window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Config holds the limiter budgets. Feed covers RSS/XML endpoints, which
// get a tighter budget than ordinary pages.
type Config struct {
	Default   Limit
	Feed      Limit
	Overrides map[string]Limit
}

func DefaultConfig() Config {
	return Config{
		Default: Limit{Requests: 60, Window: time.Minute},
		Feed:    Limit{Requests: 30, Window: time.Minute},
		Overrides: map[string]Limit{
			"news.google.com": {Requests: 100, Window: time.Minute},
		},
	}
}

// Limiter is a sliding-window rate limiter keyed by hostname. The window
// is recomputed from the timestamp history on every call rather than
// refilled like a token bucket. Safe for concurrent use; unrelated domains
// never block each other.
type Limiter struct {
	config  Config
	metrics *metrics.Metrics

	mu      sync.RWMutex // guards the domains map, not the histories
	domains map[string]*domainHistory
}

type domainHistory struct {
	mu    sync.Mutex
	times []time.Time
}

func NewLimiter(config Config) *Limiter {
	if config.Default.Requests <= 0 {
		config.Default = Limit{Requests: 60, Window: time.Minute}
	}
	if config.Feed.Requests <= 0 {
		config.Feed = Limit{Requests: 30, Window: time.Minute}
	}
	return &Limiter{
		config:  config,
		domains: make(map[string]*domainHistory),
	}
}

// SetMetrics attaches the pipeline counters; delayed requests increment
// RateLimitWaits per domain.
func (l *Limiter) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// DomainKey extracts the limiter key from a URL. Unparseable URLs fall
// into the shared default bucket.
func DomainKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "default"
	}
	return strings.ToLower(u.Hostname())
}

func (l *Limiter) limitFor(rawURL, domain string) Limit {
	if lim, ok := l.config.Overrides[domain]; ok {
		return lim
	}
	lower := strings.ToLower(rawURL)
	if strings.Contains(domain, "rss") || strings.Contains(domain, "feed") ||
		strings.Contains(lower, "/rss") || strings.Contains(lower, "/feed") ||
		strings.Contains(lower, ".xml") {
		return l.config.Feed
	}
	return l.config.Default
}

func (l *Limiter) history(domain string) *domainHistory {
	l.mu.RLock()
	h, ok := l.domains[domain]
	l.mu.RUnlock()
	if ok {
		return h
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok = l.domains[domain]; ok {
		return h
	}
	h = &domainHistory{}
	l.domains[domain] = h
	return h
}

// WaitIfNeeded blocks until the domain's budget admits one more request,
// then records it. Returns how long the caller waited. Cancelling the
// context aborts the wait without recording a request.
func (l *Limiter) WaitIfNeeded(ctx context.Context, rawURL string) (time.Duration, error) {
	domain := DomainKey(rawURL)
	limit := l.limitFor(rawURL, domain)
	h := l.history(domain)

	h.mu.Lock()
	now := time.Now()
	h.prune(now, limit.Window)

	var wait time.Duration
	if len(h.times) >= limit.Requests {
		wait = h.times[0].Add(limit.Window).Sub(now)
	}
	if wait <= 0 {
		h.add(now)
		h.mu.Unlock()
		return 0, nil
	}
	h.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	h.mu.Lock()
	h.prune(time.Now(), limit.Window)
	h.add(time.Now())
	h.mu.Unlock()

	if l.metrics != nil {
		l.metrics.RateLimitWaits.WithLabelValues(domain).Inc()
	}
	return wait, nil
}

// prune drops entries that aged out of the window. Caller holds h.mu.
func (h *domainHistory) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(h.times) && !h.times[idx].After(cutoff) {
		idx++
	}
	h.times = h.times[idx:]
}

// add records a request and trims the history to its memory cap.
// Caller holds h.mu.
func (h *domainHistory) add(t time.Time) {
	h.times = append(h.times, t)
	if len(h.times) > maxHistoryPerDomain {
		h.times = h.times[len(h.times)-maxHistoryPerDomain:]
	}
}

// DomainStats describes one domain's current window usage.
type DomainStats struct {
	RecentRequests int     `json:"recent_requests"`
	Limit          int     `json:"limit"`
	WindowSeconds  float64 `json:"window_seconds"`
	UsagePercent   float64 `json:"usage_percent"`
}

// Stats reports current usage per domain.
func (l *Limiter) Stats() map[string]DomainStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	out := make(map[string]DomainStats, len(l.domains))
	for domain, h := range l.domains {
		limit := l.limitFor(domain, domain)
		h.mu.Lock()
		recent := 0
		cutoff := now.Add(-limit.Window)
		for _, t := range h.times {
			if t.After(cutoff) {
				recent++
			}
		}
		h.mu.Unlock()
		out[domain] = DomainStats{
			RecentRequests: recent,
			Limit:          limit.Requests,
			WindowSeconds:  limit.Window.Seconds(),
			UsagePercent:   float64(recent) / float64(limit.Requests) * 100,
		}
	}
	return out
}

// ResetDomain clears one domain's history.
func (l *Limiter) ResetDomain(domain string) {
	l.mu.RLock()
	h, ok := l.domains[domain]
	l.mu.RUnlock()
	if !ok {
		return
	}
	h.mu.Lock()
	h.times = nil
	h.mu.Unlock()
}
