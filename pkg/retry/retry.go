// Package retry retries infrastructure setup calls with exponential backoff.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/c360/dataprocessor/errors"
)

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // total attempts, at least 1
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // upper bound for any delay
	Multiplier   float64       // growth factor between delays
	Jitter       float64       // fraction of the delay added at random, 0 disables
}

// DefaultConfig suits connecting to a broker at startup.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.25,
	}
}

// Validate rejects negative or inconsistent settings.
func (c Config) Validate() error {
	switch {
	case c.InitialDelay < 0 || c.MaxDelay < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "delays cannot be negative")
	case c.Multiplier < 0 || c.Jitter < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "multiplier and jitter cannot be negative")
	case c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "max delay below initial delay")
	}
	return nil
}

// Backoff returns the delay before attempt n+1 (n starting at 1), without jitter.
func (c Config) Backoff(n int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 1; i < n; i++ {
		delay *= c.Multiplier
		if c.MaxDelay > 0 && delay >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return time.Duration(delay)
}

// Do calls fn until it succeeds, returns a non-transient error, runs out of
// attempts, or ctx is done. Only errors classified transient are retried.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.IsTransient(lastErr) || stderrors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff(attempt)
		if cfg.Jitter > 0 && delay > 0 {
			delay += time.Duration(rand.Int64N(int64(float64(delay)*cfg.Jitter) + 1))
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult is Do for functions that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
