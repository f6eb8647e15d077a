package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outgoing upstream requests.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond requests with a burst of the same size.
// A non-positive rate disables throttling.
func NewLimiter(perSecond int) *Limiter {
	if perSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

// NewLimiterEvery allows one request per interval.
func NewLimiterEvery(interval time.Duration, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

func (l *Limiter) Remaining() int {
	if l == nil {
		return 0
	}
	return int(l.limiter.Tokens())
}
