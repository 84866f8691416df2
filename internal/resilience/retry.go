package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls retries with exponential backoff and jitter.
type RetryPolicy struct {
	// Attempts is the total number of tries, the first included. Default 3.
	Attempts int
	// BaseDelay is the wait before the first retry. Default 500ms.
	BaseDelay time.Duration
	// MaxDelay caps any single wait, including a server Retry-After. Default 30s.
	MaxDelay time.Duration
	// Factor multiplies the delay after each attempt. Default 2.
	Factor float64
	// Jitter is the random spread as a fraction of the delay (0.25 = ±25%).
	Jitter float64

	// Retryable overrides IsTransient when set.
	Retryable func(err error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy is tuned for third-party HTTP APIs.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
		Factor:    2,
		Jitter:    0.25,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Factor <= 0 {
		p.Factor = d.Factor
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned as is.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts-1 {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if !sleep(ctx, p.delay(attempt, err)) {
			return zero, err
		}
	}
	return zero, err
}

// delay computes the wait after the given zero-based attempt. A Retry-After
// carried by the error wins over the computed backoff.
func (p RetryPolicy) delay(attempt int, err error) time.Duration {
	if ra := RetryAfter(err); ra > 0 {
		return min(ra, p.MaxDelay)
	}

	d := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt))
	d = min(d, float64(p.MaxDelay))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(max(d, 0))
}

// sleep waits for d or until ctx is done; false means ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// LogRetry returns an OnRetry hook that logs through the global logger.
func LogRetry(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying request",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
