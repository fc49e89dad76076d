// Package retry provides bounded exponential-backoff retries for transient
// external failures, primarily LLM calls.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Config controls retry behaviour.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Zero or negative means a single attempt.
	MaxAttempts int
	// InitialDelay is the pause before the second attempt; subsequent pauses
	// double.
	InitialDelay time.Duration
}

// DefaultLLMConfig matches the dialogue contract: three attempts with 2s and
// 4s pauses before giving up and degrading to a fallback reply.
var DefaultLLMConfig = Config{MaxAttempts: 3, InitialDelay: 2 * time.Second}

// Do calls fn up to cfg.MaxAttempts times, doubling the pause between
// attempts. It stops early when fn succeeds or ctx is cancelled, and returns
// the error from the last attempt.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < cfg.MaxAttempts {
			slog.Debug("retry.Do: attempt failed, backing off", "attempt", attempt, "max", cfg.MaxAttempts, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return lastErr
}
