package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryConfig controls Retry.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryConfig matches the external API clients: three attempts, fixed delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls fn until it succeeds, returns a permanent error, the attempts
// run out, or ctx is done. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if IsPermanent(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
