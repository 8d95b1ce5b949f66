// Package retry runs operations under an explicit retry policy on top of
// github.com/sethvargo/go-retry.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// BackoffFunc returns the delay before the given retry (attempt starts at 1).
type BackoffFunc func(base time.Duration, attempt int) time.Duration

// Linear waits base × attempt.
func Linear(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

// Constant always waits base.
func Constant(base time.Duration, _ int) time.Duration {
	return base
}

// Policy bounds how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     BackoffFunc
}

// DefaultPolicy is three attempts with linear backoff from one second.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Backoff: Linear}
}

// Delay returns the wait after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return Linear(p.BaseDelay, attempt)
	}
	return p.Backoff(p.BaseDelay, attempt)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// backoff yields Delay(1), Delay(2), ... and stops after maxAttempts-1 retries.
func (p Policy) backoff(maxAttempts int) goretry.Backoff {
	retries := 0
	next := goretry.BackoffFunc(func() (time.Duration, bool) {
		retries++
		return p.Delay(retries), false
	})
	return goretry.WithMaxRetries(uint64(maxAttempts-1), next)
}

// Do calls fn until it succeeds, returns a Permanent error, the policy is
// exhausted or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	attempt := 0
	var lastErr error
	err := goretry.Do(ctx, p.backoff(maxAttempts), func(ctx context.Context) error {
		attempt++
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm
		}
		return goretry.RetryableError(lastErr)
	})
	if err == nil {
		return nil
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		if lastErr != nil {
			return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
		}
		return ctxErr
	}
	return &ExhaustedError{Attempts: attempt, Err: lastErr}
}
