package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMaxRetries is wrapped around the last error once every attempt has failed.
var ErrMaxRetries = errors.New("max retries exceeded")

// RetryOptions configures WithRetry. Zero fields take defaults, except
// InitialDelay: zero means retry immediately.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	o.InitialDelay = max(o.InitialDelay, 0)
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	return o
}

// backoff returns the wait after the given failed attempt, counting from 1.
func (o RetryOptions) backoff(attempt int) time.Duration {
	d := float64(o.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= o.Multiplier
		if d >= float64(o.MaxDelay) {
			return o.MaxDelay
		}
	}
	return min(time.Duration(d), o.MaxDelay)
}

// RetryableError marks whether a failure is worth another attempt. Errors
// without this wrapper are retried.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

func permanent(ctx context.Context, err error) bool {
	var re *RetryableError
	if errors.As(err, &re) && !re.Retryable {
		return true
	}
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}

// WithRetry runs operation until it succeeds, returns a permanent error, or
// runs out of attempts.
func WithRetry(ctx context.Context, operation func() error, opts RetryOptions) error {
	opts = opts.withDefaults()

	var err error
	for attempt := 1; ; attempt++ {
		if err = operation(); err == nil {
			return nil
		}
		if permanent(ctx, err) {
			return err
		}
		if attempt >= opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt, err)
		}

		wait := opts.backoff(attempt)
		slog.Debug("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", wait,
			"error", err)
		if wait == 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
