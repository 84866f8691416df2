// Package resilience provides retry and circuit breaker helpers for calls to
// external lead providers.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of a breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen lets probe calls through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned by Allow while a breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker. Default 5.
	Threshold int
	// Cooldown is how long the breaker stays open before probing. Default 30s.
	Cooldown time.Duration
	// Probes is the number of successful half-open calls needed to close. Default 1.
	Probes int
	// Counts decides which errors count as failures. Default: every non-nil error.
	Counts func(err error) bool
	// OnStateChange is called with the breaker name on every transition.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, Cooldown: 30 * time.Second, Probes: 1}
}

// Breaker is a circuit breaker for one named service.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probesOK int

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	d := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = d.Probes
	}
	if cfg.Counts == nil {
		cfg.Counts = func(err error) bool { return err != nil }
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// Name returns the service name.
func (b *Breaker) Name() string { return b.name }

// Allow returns ErrCircuitOpen while the breaker is open. After the
// cooldown the breaker moves to half-open and lets calls through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
		return ErrCircuitOpen
	}
	b.setState(CircuitHalfOpen)
	return nil
}

// Record feeds the result of a call that Allow admitted.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.Counts(err) {
		b.failures = 0
		if b.state == CircuitHalfOpen {
			b.probesOK++
			if b.probesOK >= b.cfg.Probes {
				b.probesOK = 0
				b.setState(CircuitClosed)
			}
		}
		return
	}

	b.failures++
	switch b.state {
	case CircuitHalfOpen:
		b.trip()
	case CircuitClosed:
		if b.failures >= b.cfg.Threshold {
			b.trip()
		}
	}
}

// State returns the effective state, reporting half-open once the cooldown
// has elapsed even if no call has probed yet.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return CircuitHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures, b.probesOK = 0, 0
	b.setState(CircuitClosed)
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.probesOK = 0
	b.setState(CircuitOpen)
}

func (b *Breaker) setState(to CircuitState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Breakers holds one breaker per service, created on first use.
type Breakers struct {
	cfg BreakerConfig

	mu sync.RWMutex
	m  map[string]*Breaker
}

// NewBreakers creates an empty breaker set sharing cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, m: make(map[string]*Breaker)}
}

// Get returns the breaker for name.
func (s *Breakers) Get(name string) *Breaker {
	s.mu.RLock()
	b, ok := s.m[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.m[name]; ok {
		return b
	}
	b = NewBreaker(name, s.cfg)
	s.m[name] = b
	return b
}

// States snapshots every breaker's state.
func (s *Breakers) States() map[string]CircuitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CircuitState, len(s.m))
	for name, b := range s.m {
		out[name] = b.State()
	}
	return out
}
