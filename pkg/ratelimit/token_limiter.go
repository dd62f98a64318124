package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// TokenLimiter limits the number of LLM tokens spent per minute.
type TokenLimiter struct {
	limiter *rate.Limiter
	max     int
}

// NewTokenLimiter creates a limiter that refills maxPerMinute tokens every minute.
// A non-positive limit disables limiting.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	if maxPerMinute <= 0 {
		return &TokenLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &TokenLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute),
		max:     maxPerMinute,
	}
}

// Wait blocks until n tokens are available or ctx is done.
func (t *TokenLimiter) Wait(ctx context.Context, n int) error {
	if t.max > 0 && n > t.max {
		return fmt.Errorf("request needs %d tokens, limit is %d per minute", n, t.max)
	}
	return t.limiter.WaitN(ctx, n)
}

// GetRemaining returns the tokens currently available.
func (t *TokenLimiter) GetRemaining() int {
	if t.max <= 0 {
		return -1
	}
	return int(t.limiter.Tokens())
}
