package gateway

import (
	"sync"
	"time"
)

// BreakerConfig controls the optional per-provider circuit breaker
type BreakerConfig struct {
	Enabled   bool
	Threshold int           // consecutive failures before the circuit opens
	Cooldown  time.Duration // how long an open circuit rejects calls
}

// DefaultBreakerConfig returns the breaker defaults (disabled)
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:   false,
		Threshold: 5,
		Cooldown:  30 * time.Second,
	}
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// breaker is a consecutive-failure circuit breaker. After Threshold
// failures the circuit opens and rejects calls for Cooldown, then lets
// exactly one probe through (half-open) before deciding to reclose.
type breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	state    breakerState
	failures int
	openedAt time.Time
	now      func() time.Time // stubbed in tests
}

func newBreaker(cfg BreakerConfig) *breaker {
	return &breaker{
		cfg: cfg,
		now: time.Now,
	}
}

// allow reports whether a call may proceed, transitioning an expired
// open circuit to half-open.
func (b *breaker) allow() bool {
	if !b.cfg.Enabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
			b.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		// Single probe in flight; reject until it reports back
		return false
	default:
		return true
	}
}

func (b *breaker) recordSuccess() {
	if !b.cfg.Enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = stateClosed
}

func (b *breaker) recordFailure() {
	if !b.cfg.Enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	b.failures++
	if b.failures >= b.cfg.Threshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
