package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// defaultCallsPerMinute is the per-caller tool call budget.
const defaultCallsPerMinute = 100

// identityLimiter applies a token-bucket rate limit per caller identity.
type identityLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// newIdentityLimiter creates a limiter allowing callsPerMinute tool calls
// per caller. Zero or negative uses the default.
func newIdentityLimiter(callsPerMinute int) *identityLimiter {
	if callsPerMinute <= 0 {
		callsPerMinute = defaultCallsPerMinute
	}
	return &identityLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(callsPerMinute) / 60.0),
		burst:    callsPerMinute,
	}
}

// Allow reports whether the caller identified by key may make a call now.
func (l *identityLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
