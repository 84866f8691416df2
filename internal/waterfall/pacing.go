package waterfall

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer sleeps a random duration within [Min, Max] to keep request timing
// irregular.
type Pacer struct {
	Min, Max time.Duration

	rand func(n int64) int64
}

// NewPacer creates a pacer. Bounds are swapped when given in reverse.
func NewPacer(lo, hi time.Duration) Pacer {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Pacer{Min: max(lo, 0), Max: max(hi, 0)}
}

// Next returns the next delay.
func (p Pacer) Next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	n := rand.Int64N
	if p.rand != nil {
		n = p.rand
	}
	return p.Min + time.Duration(n(int64(p.Max-p.Min)+1))
}

// Wait sleeps for Next or until ctx is done, returning ctx.Err in that case.
func (p Pacer) Wait(ctx context.Context) error {
	d := p.Next()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
