package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// BackoffFunc returns the delay to wait before retry number attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Linear waits attempt*step before each retry: step, 2*step, 3*step.
func Linear(step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return time.Duration(attempt) * step
	}
}

// Exponential grows the delay by multiplier per retry, capped at maxDelay,
// with ±jitter as a fraction of the computed delay.
func Exponential(initial, maxDelay time.Duration, multiplier, jitter float64) BackoffFunc {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return func(attempt int) time.Duration {
		delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if maxDelay > 0 && delay > float64(maxDelay) {
			delay = float64(maxDelay)
		}
		if jitter > 0 {
			delay += (rand.Float64()*2 - 1) * delay * jitter
		}
		if delay < 0 {
			delay = 0
		}
		return time.Duration(delay)
	}
}

// RetryConfig controls how many times an operation is attempted and how long
// to wait in between.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 3.
	MaxAttempts int

	// Backoff computes the wait before each retry. Default: Linear(2s).
	Backoff BackoffFunc

	// ShouldRetry decides which errors are retried. Default: IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns three attempts with a linear 2s step.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     Linear(2 * time.Second),
	}
}

// LinearRetry builds a RetryConfig from configuration values.
func LinearRetry(maxAttempts, backoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if backoffMs >= 0 {
		cfg.Backoff = Linear(time.Duration(backoffMs) * time.Millisecond)
	}
	return cfg
}

// Do executes fn with retry logic according to cfg.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn with retry logic and returns the value of the first
// successful call. Only errors accepted by ShouldRetry are retried; context
// cancellation stops immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !cfg.ShouldRetry(err) || attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = Linear(2 * time.Second)
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = IsTransient
	}
	return cfg
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
