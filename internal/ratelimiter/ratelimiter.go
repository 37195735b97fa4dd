// Package ratelimiter throttles connection admission with a token bucket.
package ratelimiter

import "golang.org/x/time/rate"

// RateLimiter admits events at a sustained rate with a bounded burst.
//
// It wraps golang.org/x/time/rate. The acceptor consults Allow once per
// accepted socket; when it returns false the socket is closed straight away
// instead of being registered with the dispatcher.
//
// A nil *RateLimiter admits everything, so callers can hold an optional
// limiter without branching.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter admitting perSecond events per second with room for
// burst events at once.
//
// Special cases:
//   - perSecond = 0: no limiting (every call to Allow succeeds)
//   - burst = 0: burst defaults to perSecond, so one second's worth of
//     connections can arrive together
func New(perSecond, burst uint) *RateLimiter {
	if perSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = perSecond
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), int(burst))}
}

// Allow consumes one token if available. It never blocks.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Unlimited reports whether the limiter admits everything.
func (r *RateLimiter) Unlimited() bool {
	return r == nil || r.limiter.Limit() == rate.Inf
}
