package jobs

import (
	"log/slog"

	"linkpulse/internal/ratelimit"
)

// RateLimitSweepJob drops idle keys from the redirect rate limiter.
type RateLimitSweepJob struct {
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewRateLimitSweepJob creates a sweep job for limiter.
func NewRateLimitSweepJob(limiter *ratelimit.Limiter, logger *slog.Logger) *RateLimitSweepJob {
	return &RateLimitSweepJob{limiter: limiter, logger: logger}
}

func (j *RateLimitSweepJob) Name() string { return "ratelimit_sweep" }

// Run sweeps the limiter.
func (j *RateLimitSweepJob) Run() error {
	removed := j.limiter.Sweep()
	if removed > 0 {
		j.logger.Debug("Swept idle rate limit keys",
			slog.Int("removed", removed),
			slog.Int("remaining", j.limiter.Len()))
	}
	return nil
}
