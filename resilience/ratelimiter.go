package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a per-key token bucket limiter: a lazily-created
// per-key golang.org/x/time/rate.Limiter map exposing an acquire(n) ->
// wait contract, reusing the Reserve-then-cancel trick to compute
// delay without consuming tokens twice.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewRateLimiter builds a limiter with bucket capacity `requests` and
// refill rate `requests / period`.
func NewRateLimiter(requests int, period time.Duration) *RateLimiter {
	r := rate.Limit(float64(requests) / period.Seconds())
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    requests,
	}
}

func (l *RateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Acquire blocks until n tokens are available for key, or ctx is
// cancelled. wait = max(0, (n - tokens) / refillRate).
func (l *RateLimiter) Acquire(ctx context.Context, key string, n int) error {
	lim := l.limiterFor(key)
	reservation := lim.ReserveN(time.Now(), n)
	if !reservation.OK() {
		reservation.Cancel()
		return context.DeadlineExceeded
	}
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}

// Wait reports how long Acquire(n) would currently block, without
// reserving tokens. Useful for admission-control telemetry.
func (l *RateLimiter) Wait(key string, n int) time.Duration {
	lim := l.limiterFor(key)
	r := lim.ReserveN(time.Now(), n)
	delay := r.Delay()
	r.Cancel()
	if delay < 0 {
		return 0
	}
	return delay
}
