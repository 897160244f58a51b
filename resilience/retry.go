package resilience

import (
	"cmp"
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	apperrors "github.com/kbukum/dictation/errors"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0
)

// RetryConfig configures Retry. Zero fields fall back to the defaults.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// Jitter spreads each delay by up to this fraction either way.
	Jitter float64

	// RetryIf reports whether err is worth another attempt.
	RetryIf func(error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig returns three attempts starting at 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Jitter: 0.1}.normalized()
}

// DefaultRetryIf retries everything but context errors.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryIfRetryable trusts AppError.Retryable and treats plain errors like
// DefaultRetryIf.
func RetryIfRetryable(err error) bool {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return DefaultRetryIf(err)
}

func (c RetryConfig) normalized() RetryConfig {
	c.MaxAttempts = cmp.Or(max(c.MaxAttempts, 0), defaultMaxAttempts)
	c.InitialBackoff = cmp.Or(max(c.InitialBackoff, 0), defaultInitialBackoff)
	c.MaxBackoff = cmp.Or(max(c.MaxBackoff, 0), defaultMaxBackoff)
	c.BackoffFactor = cmp.Or(max(c.BackoffFactor, 0), defaultBackoffFactor)
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// backoff is the delay after the given failed attempt: exponential from
// InitialBackoff, capped at MaxBackoff, then jittered.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	d = math.Min(d, float64(c.MaxBackoff))
	if c.Jitter > 0 {
		d *= 1 + c.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds or RetryIf rejects the error. It also
// stops when attempts run out or ctx is done. The last error from fn is
// returned as is.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	cfg = cfg.normalized()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.RetryIf(err) {
			return zero, err
		}

		wait := cfg.backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// RetryFunc is Retry for calls without a result.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
