package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeromwolf/FluxNews/pkg/circuitbreaker"
	"github.com/jeromwolf/FluxNews/pkg/ratelimit"
)

const defaultTimeout = 30 * time.Second

// Client is an outbound HTTP client that layers per-domain sliding-window
// rate limiting, a process-wide ceiling, retry with backoff, and a circuit
// breaker over net/http. Every collector fetch goes through it.
type Client struct {
	http      *http.Client
	limiter   *ratelimit.Limiter
	retry     *ratelimit.RetryHandler
	ceiling   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
	userAgent string
}

type Config struct {
	Timeout time.Duration
	// GlobalRPS caps total outbound requests per second across all domains.
	GlobalRPS   float64
	GlobalBurst int
	UserAgent   string
}

type Option func(*Client)

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithRetryHandler(r *ratelimit.RetryHandler) Option {
	return func(c *Client) { c.retry = r }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.GlobalRPS <= 0 {
		cfg.GlobalRPS = 20
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "fluxnews-collector/1.0"
	}

	c := &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		retry:     ratelimit.NewRetryHandler(3, 2.0),
		ceiling:   rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		userAgent: cfg.UserAgent,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "outbound-http",
			MaxFailures: 10,
			Timeout:     time.Minute,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches a URL and returns its body. The per-domain limiter is
// consulted before the global ceiling so a throttled domain never burns
// ceiling budget.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if _, err := c.limiter.WaitIfNeeded(ctx, url); err != nil {
		return nil, err
	}
	if err := c.ceiling.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	err := c.retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("User-Agent", c.userAgent)
			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
			}
			body, err = io.ReadAll(resp.Body)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// LimiterStats exposes the limiter's per-domain usage for the stats surface.
func (c *Client) LimiterStats() map[string]ratelimit.DomainStats {
	return c.limiter.Stats()
}

// RetryStats exposes per-class retry counts.
func (c *Client) RetryStats() map[string]int {
	return c.retry.Stats()
}
