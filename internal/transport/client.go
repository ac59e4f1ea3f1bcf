// Package transport provides the resilient HTTP client every upstream call
// goes through: a pooled connection transport, bounded retries with jittered
// exponential backoff, and a per-endpoint circuit breaker.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/exilewatch/exilewatch/internal/domain"
)

// Config holds the retry and circuit-breaker parameters.
type Config struct {
	MaxRetries       int           // additional attempts after the first
	BackoffFactor    time.Duration // base of the exponential backoff
	RequestTimeout   time.Duration // per-attempt timeout
	BreakerThreshold int           // consecutive failures before a circuit opens
	BreakerCooldown  time.Duration // how long an open circuit rejects requests
	UserAgent        string
}

// DefaultConfig returns sensible defaults matching the upstream rate limits.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		BackoffFactor:    time.Second,
		RequestTimeout:   30 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
		UserAgent:        "exilewatch/1.0",
	}
}

// StatusError is returned for HTTP responses with status >= 400.
type StatusError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status warrants another attempt: 429 and
// 5xx are transient, other 4xx are not.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a GET-only HTTP client with pooled keep-alive connections,
// bounded retries, and circuit breaking. One Client is shared across the
// whole process lifetime.
type Client struct {
	httpClient *http.Client
	cfg        Config
	breaker    *Breaker
	logger     *slog.Logger

	// sleep and jitter are swapped out in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New creates a Client with a pooled transport and a fresh circuit breaker.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "transport"))

	t := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: t,
			Timeout:   cfg.RequestTimeout,
		},
		cfg:     cfg,
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, logger),
		logger:  logger,
		sleep:   sleepCtx,
		jitter:  rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// backoffDelay returns the delay before retry attempt n (1-based):
// factor * 2^(n-1) plus up to one second of uniform jitter.
func (c *Client) backoffDelay(n int) time.Duration {
	base := c.cfg.BackoffFactor << (n - 1)
	return base + time.Duration(c.jitter()*float64(time.Second))
}

// Get fetches rawURL with the given query parameters and headers. It retries
// transient failures (connection errors, timeouts, 429/5xx) up to
// MaxRetries additional times; other 4xx fail immediately. Every terminal
// failure is recorded against the endpoint's circuit; when the circuit is
// open the call returns domain.ErrCircuitOpen without touching the network.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) ([]byte, error) {
	fullURL := rawURL
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	key := BreakerKey(rawURL)

	if !c.breaker.Allow(key) {
		return nil, fmt.Errorf("transport: get %s: %w", rawURL, domain.ErrCircuitOpen)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			c.logger.Debug("retrying request",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, err := c.do(ctx, fullURL, headers)
		if err == nil {
			c.breaker.RecordSuccess(key)
			c.logger.Debug("request succeeded",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt+1),
			)
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			c.breaker.RecordFailure(key)
			c.logger.Warn("non-retryable response",
				slog.String("url", rawURL),
				slog.Int("status", se.StatusCode),
			)
			return nil, err
		}

		c.logger.Warn("request attempt failed",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	c.breaker.RecordFailure(key)
	c.logger.Error("all attempts failed",
		slog.String("url", rawURL),
		slog.Int("attempts", c.cfg.MaxRetries+1),
		slog.String("error", lastErr.Error()),
	)
	return nil, fmt.Errorf("transport: get %s after %d attempts: %w", rawURL, c.cfg.MaxRetries+1, lastErr)
}

// do performs a single attempt and reads the full response body.
func (c *Client) do(ctx context.Context, fullURL string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: fullURL, Body: body}
	}
	return body, nil
}
