// Package retry implements the retry envelope (spec §4.2): a higher-order
// wrapper that runs a fallible action under exponential backoff, resetting
// its own retry budget after a run of consecutive successes.
//
// Grounded on the retry-decorator shape used across the corpus (see e.g. the
// persistence retry decorator in the retrieved examples), adapted to drop
// jitter: property P6 requires the sleep before attempt i to be exactly
// min(initial * factor^(i-1), max_delay), which jitter would violate.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/scottluskcis/repo-stats-go/internal/errs"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
)

// Config bundles the tunables the CLI surface exposes per spec §6.
type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffFactor     float64
	SuccessThreshold  int
}

// DefaultConfig mirrors the CLI's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialDelay:     1000 * time.Millisecond,
		MaxDelay:         30000 * time.Millisecond,
		BackoffFactor:    2.0,
		SuccessThreshold: 5,
	}
}

// Delay returns the sleep duration before attempt i (1-indexed), per P6.
func Delay(cfg Config, attempt int) time.Duration {
	d := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	return time.Duration(d)
}

// Counters is the envelope's persistent state across calls to Do, letting a
// caller observe (and the success-threshold reset affect) the running
// consecutive-success and lifetime-retry counts described by spec §4.2.
type Counters struct {
	ConsecutiveSuccess int
	LifetimeRetries    int
}

// OnRetry is invoked once per retry, before the envelope sleeps.
type OnRetry func(attempt int, err error)

// Do runs action up to cfg.MaxAttempts times. The action is opaque and may
// have side effects; the envelope makes no rollback guarantee, so the action
// must itself be re-entrant (consult durable state to skip already-emitted
// work) per spec §4.2.
func Do[T any](ctx context.Context, cfg Config, counters *Counters, log logging.Logger, onRetry OnRetry, action func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			var z T
			return z, err
		}

		result, err := action()
		if err == nil {
			counters.ConsecutiveSuccess++
			if counters.ConsecutiveSuccess >= cfg.SuccessThreshold {
				counters.ConsecutiveSuccess = 0
				counters.LifetimeRetries = 0
				log.Debug("retry.budget.reset", "success_threshold", cfg.SuccessThreshold)
			}
			return result, nil
		}

		lastErr = err
		counters.ConsecutiveSuccess = 0
		counters.LifetimeRetries++

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := Delay(cfg, attempt)
		if onRetry != nil {
			onRetry(attempt, err)
		}
		log.Warn("retry.attempt", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, &errs.AggregateError{Attempts: cfg.MaxAttempts, Last: lastErr}
}
