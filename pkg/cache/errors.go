package cache

import (
	"context"
	"errors"
	"time"
)

// ErrBackend marks a failure talking to Redis or MongoDB. The runner treats
// cache errors as misses, so a flaky backend slows runs down but never
// changes a result.
var ErrBackend = errors.New("cache backend unavailable")

// RetryableError marks a transient backend failure, such as a dropped
// connection or a timeout, that is worth another attempt.
type RetryableError struct{ Err error }

// Retryable marks err as transient. It returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err, or anything it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff is a capped exponential retry policy.
type Backoff struct {
	Attempts int           // total tries, including the first
	Initial  time.Duration // wait before the second try
	Max      time.Duration // upper bound on any single wait; zero means none
}

// defaultBackoff keeps a dead backend from stalling a solve for more than a
// few hundred milliseconds per cache call.
var defaultBackoff = Backoff{Attempts: 3, Initial: 100 * time.Millisecond, Max: time.Second}

// Retry calls fn until it succeeds, returns an error that is not
// retryable, or runs out of attempts. It returns the last error, or ctx's
// error if ctx ends while waiting.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	wait := b.Initial

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
		if b.Max > 0 && wait > b.Max {
			wait = b.Max
		}
	}
	return err
}

// RetryWithBackoff retries fn with the default policy.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return defaultBackoff.Retry(ctx, fn)
}
