package transport

import (
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Breaker is a circuit breaker keyed by (host, path). Each key tracks a
// consecutive-failure counter; when it reaches the threshold the circuit
// opens for the cooldown period and every request to that key short-circuits
// without touching the network. The circuit closes lazily: the first Allow
// call after the cooldown has elapsed resets the counter unconditionally;
// there is no half-open trial request.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	failures  map[string]int
	openUntil map[string]time.Time

	// now is swapped out in tests.
	now func() time.Time
}

// NewBreaker creates a Breaker that opens a key after threshold consecutive
// failures and keeps it open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
		failures:  make(map[string]int),
		openUntil: make(map[string]time.Time),
		now:       time.Now,
	}
}

// BreakerKey derives the circuit key for a URL: host plus path, ignoring the
// query string so every entity id on one endpoint shares a circuit.
func BreakerKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host + u.Path
}

// Allow reports whether a request to key may proceed. When the cooldown of
// an open circuit has elapsed, the circuit is closed and the failure counter
// reset before returning true.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, open := b.openUntil[key]
	if !open {
		return true
	}
	if b.now().Before(until) {
		b.logger.Warn("circuit breaker open, short-circuiting request",
			slog.String("key", key),
			slog.Duration("retry_in", until.Sub(b.now())),
		)
		return false
	}

	delete(b.openUntil, key)
	b.failures[key] = 0
	b.logger.Info("circuit breaker closed", slog.String("key", key))
	return true
}

// RecordFailure increments the failure counter for key and opens the circuit
// once the threshold is reached.
func (b *Breaker) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[key]++
	if b.failures[key] >= b.threshold {
		b.openUntil[key] = b.now().Add(b.cooldown)
		b.logger.Error("circuit breaker opened",
			slog.String("key", key),
			slog.Int("failures", b.failures[key]),
			slog.Duration("cooldown", b.cooldown),
		)
	}
}

// RecordSuccess resets the failure counter for key.
func (b *Breaker) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures[key] != 0 {
		b.failures[key] = 0
		b.logger.Debug("circuit breaker counter reset", slog.String("key", key))
	}
}
