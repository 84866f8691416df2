package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestBreaker(cfg BreakerConfig) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("test", cfg)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Threshold: 3, Cooldown: time.Minute})
	for range 2 {
		require.NoError(t, b.Allow())
		b.Record(errBoom)
	}
	assert.Equal(t, CircuitClosed, b.State())

	b.Record(errBoom)
	assert.Equal(t, CircuitOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Threshold: 2})
	b.Record(errBoom)
	b.Record(nil)
	b.Record(errBoom)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Minute})
	b.Record(errBoom)
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	*now = now.Add(time.Minute)
	assert.Equal(t, CircuitHalfOpen, b.State())
	require.NoError(t, b.Allow())
	b.Record(nil)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Minute})
	b.Record(errBoom)
	*now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	b.Record(errBoom)
	assert.Equal(t, CircuitOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_CountsFilter(t *testing.T) {
	ignored := errors.New("no match")
	b, _ := newTestBreaker(BreakerConfig{Threshold: 1, Counts: func(err error) bool { return !errors.Is(err, ignored) }})
	b.Record(ignored)
	assert.Equal(t, CircuitClosed, b.State())
	b.Record(errBoom)
	assert.Equal(t, CircuitOpen, b.State())
}

func TestBreaker_OnStateChangeAndReset(t *testing.T) {
	var transitions []string
	b, _ := newTestBreaker(BreakerConfig{Threshold: 1, OnStateChange: func(name string, from, to CircuitState) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	}})
	b.Record(errBoom)
	b.Reset()
	assert.Equal(t, []string{"test:closed->open", "test:open->closed"}, transitions)
	assert.Equal(t, "test", b.Name())
}

func TestBreakers_GetAndStates(t *testing.T) {
	s := NewBreakers(BreakerConfig{Threshold: 1})
	a := s.Get("brasilapi")
	assert.Same(t, a, s.Get("brasilapi"))
	s.Get("receitaws").Record(errBoom)

	states := s.States()
	assert.Equal(t, CircuitClosed, states["brasilapi"])
	assert.Equal(t, CircuitOpen, states["receitaws"])
}

func TestBreakers_ConcurrentGet(t *testing.T) {
	s := NewBreakers(DefaultBreakerConfig())
	var wg sync.WaitGroup
	got := make([]*Breaker, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.Get("svc")
			got[i].Record(nil)
		}(i)
	}
	wg.Wait()
	for _, b := range got {
		assert.Same(t, got[0], b)
	}
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
