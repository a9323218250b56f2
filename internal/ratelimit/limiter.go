// Package ratelimit is an in-memory sliding-window limiter keyed by client.
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Limiter allows at most max requests per key within any trailing window.
// State is process local and is lost on restart.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// New returns a limiter. A max of zero or less disables limiting.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Enabled reports whether the limiter rejects anything.
func (l *Limiter) Enabled() bool {
	return l.max > 0 && l.window > 0
}

// prune drops the hits that left the window. Callers hold mu.
func prune(hits []time.Time, windowStart time.Time) []time.Time {
	idx := 0
	for idx < len(hits) && !hits[idx].After(windowStart) {
		idx++
	}
	return hits[idx:]
}

// Allow records a request for key and reports whether it is within limit.
// Rejected requests are not recorded.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := prune(l.hits[key], now.Add(-l.window))
	if len(hits) >= l.max {
		l.hits[key] = hits
		return false
	}
	l.hits[key] = append(hits, now)
	return true
}

// Sweep forgets keys with no hits inside the window and returns how many
// were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Add(-l.window)
	removed := 0
	for key, hits := range l.hits {
		hits = prune(hits, windowStart)
		if len(hits) == 0 {
			delete(l.hits, key)
			removed++
			continue
		}
		l.hits[key] = hits
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// KeyFunc extracts the limiting key from a request.
type KeyFunc func(c *fiber.Ctx) string

// Middleware rejects requests over the limit with 429.
// A nil keyFunc keys by the peer address.
func Middleware(limiter *Limiter, keyFunc KeyFunc, logger *slog.Logger) fiber.Handler {
	if keyFunc == nil {
		keyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil || !limiter.Enabled() {
			return c.Next()
		}

		key := keyFunc(c)
		if limiter.Allow(key) {
			return c.Next()
		}

		logger.Warn("Rate limit exceeded",
			slog.String("key", key),
			slog.String("path", c.Path()))
		c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(limiter.window.Seconds())))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": fmt.Sprintf("Rate limit exceeded. Max %d requests per %d seconds.",
				limiter.max, int(limiter.window.Seconds())),
		})
	}
}
