package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter paces calls to one service. It backs off to half speed on every
// 429 (never below a quarter of the configured rate) and recovers by 10%
// per success (never above the configured rate).
type Limiter struct {
	service string
	lim     *rate.Limiter

	mu      sync.Mutex
	base    rate.Limit
	floor   rate.Limit
	current rate.Limit
}

// NewLimiter allows perMinute calls per minute with a burst of one.
// perMinute <= 0 means unlimited.
func NewLimiter(service string, perMinute float64) *Limiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Limit(perMinute / 60)
	}
	return &Limiter{
		service: service,
		lim:     rate.NewLimiter(r, 1),
		base:    r,
		floor:   r / 4,
		current: r,
	}
}

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// OnSuccess nudges the rate back toward the configured one.
func (l *Limiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.base == rate.Inf || l.current >= l.base {
		return
	}
	l.current = min(l.current*1.1, l.base)
	l.lim.SetLimit(l.current)
}

// OnRateLimit halves the rate after a 429.
func (l *Limiter) OnRateLimit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.base == rate.Inf {
		return
	}
	l.current = max(l.current/2, l.floor)
	l.lim.SetLimit(l.current)
	zap.L().Warn("fetcher: rate limited, slowing down",
		zap.String("service", l.service),
		zap.Float64("per_minute", float64(l.current)*60),
	)
}

// Limit returns the current rate in events per second.
func (l *Limiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
