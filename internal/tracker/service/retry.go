package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/repository"
)

// RetryError is returned when every attempt failed or a failure was not
// worth retrying.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// RetryPolicy retries transient failures with capped exponential backoff.
type RetryPolicy struct {
	MaxAttempts    int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	IsRetryable    func(error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(cfg config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		MinDelay:       cfg.MinDelay,
		MaxDelay:       cfg.MaxDelay,
		AttemptTimeout: cfg.AttemptTimeout,
		IsRetryable:    repository.IsTransient,
	}
}

// Backoff returns the delay before the attempt following attempt n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	d := p.MinDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails permanently or the attempts run out.
// Cancellation of ctx is returned as is, without wrapping.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	maxAttempts := max(p.MaxAttempts, 1)
	isRetryable := p.IsRetryable
	if isRetryable == nil {
		isRetryable = repository.IsTransient
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = p.runAttempt(ctx, op)
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if !isRetryable(lastErr) {
			return attempt, &RetryError{Attempts: attempt, Err: lastErr}
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return attempt, err
		}
	}
	return maxAttempts, &RetryError{Attempts: maxAttempts, Err: lastErr}
}

func (p RetryPolicy) runAttempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

// Retry is Do for operations that return a value.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, int, error) {
	var result T
	attempts, err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, attempts, err
}

// AttemptsOf returns the attempt count carried by a RetryError.
func AttemptsOf(err error) int {
	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		return retryErr.Attempts
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
