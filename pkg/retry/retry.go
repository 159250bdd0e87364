package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	customError "github.com/segyhp/mediatheque/pkg/errors"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 20 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Func is the unit of work that gets retried.
type Func func(ctx context.Context) error

type config struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	retryable    func(error) bool
}

// Option configures retry behavior.
type Option func(*config) error

// WithMaxAttempts sets the maximum number of attempts, the first one included.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the delay before the first retry; it doubles on each further retry.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets the share of random jitter added to each delay.
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0 || factor > 1 {
			return ErrInvalidJitterFactor
		}
		c.jitterFactor = factor
		return nil
	}
}

// WithRetryIf replaces the predicate deciding which errors are retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *config) error {
		c.retryable = fn
		return nil
	}
}

// Do runs fn and retries it with exponential backoff while it fails with a
// transient store error. Any other error is returned immediately.
//
// Default schedule: 0 ms, 20 ms, 40 ms, 80 ms (plus up to 30% jitter).
func Do(ctx context.Context, fn Func, options ...Option) error {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		retryable:    customError.IsTransient,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter only

			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !cfg.retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
