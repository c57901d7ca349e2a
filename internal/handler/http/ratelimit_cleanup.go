package http

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultCleanupSchedule is the default eviction schedule for rate limiter buckets.
const DefaultCleanupSchedule = "@every 5m"

// RateLimitCleaner is the rate limiter surface the cleanup job needs.
type RateLimitCleaner interface {
	// CleanupExpired evicts idle buckets and returns how many were removed.
	CleanupExpired() int
	// TrackedClients returns the number of buckets still held.
	TrackedClients() int
}

// ValidateCleanupSchedule checks schedule with the standard cron parser.
// Descriptors such as "@every 5m" and "@hourly" are accepted.
func ValidateCleanupSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cleanup schedule: cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule '%s': %w", schedule, err)
	}
	return nil
}

// StartRateLimitCleanup schedules periodic eviction of idle rate limiter
// buckets and blocks until ctx is cancelled (e.g., during server shutdown).
// A running job is allowed to finish before it returns.
//
// Parameters:
//   - ctx: Context for cancellation (typically server's context)
//   - limiter: The rate limiter to clean up
//   - schedule: cron spec, e.g. "@every 5m"
//   - logger: destination for job logs
func StartRateLimitCleanup(ctx context.Context, limiter RateLimitCleaner, schedule string, logger *slog.Logger) error {
	if err := ValidateCleanupSchedule(schedule); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		runRateLimitCleanup(limiter, logger)
	}); err != nil {
		return fmt.Errorf("failed to add cleanup job: %w", err)
	}
	c.Start()

	logger.Info("rate limit cleanup started", slog.String("schedule", schedule))

	<-ctx.Done()
	<-c.Stop().Done()

	logger.Info("rate limit cleanup stopped")
	return nil
}

// runRateLimitCleanup runs one eviction pass.
func runRateLimitCleanup(limiter RateLimitCleaner, logger *slog.Logger) {
	removed := limiter.CleanupExpired()
	logger.Debug("rate limit cleanup completed",
		slog.Int("keys_removed", removed),
		slog.Int("active_keys", limiter.TrackedClients()),
	)
}
