package internal

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker guards the backend transport. Transport failures inside
// window count toward threshold; once reached, calls are refused for
// openDuration. After that a single probe is admitted: its success closes
// the breaker, its failure opens it again. Remote faults are not failures,
// the server answered.
type CircuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	window       time.Duration
	openDuration time.Duration
	now          func() time.Time

	state     breakerState
	recent    []time.Time
	openUntil time.Time
	probing   bool
}

// NewCircuitBreaker returns nil, a breaker that never opens, when threshold
// is zero or less.
func NewCircuitBreaker(threshold int, window, openDuration time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		return nil
	}
	return &CircuitBreaker{
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		recent:       make([]time.Time, 0, threshold),
		now:          time.Now,
	}
}

// Allow reports whether a call may go out. Every admitted call must be
// followed by RecordFailure or RecordSuccess.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		if cb.now().Before(cb.openUntil) {
			return false
		}
		cb.state = breakerHalfOpen
		cb.probing = true
		return true
	case breakerHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return true
}

// RecordFailure counts a transport failure.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	tripped := false
	now := cb.now()
	switch cb.state {
	case breakerOpen:
		// a call admitted before the breaker opened
	case breakerHalfOpen:
		cb.trip(now)
		tripped = true
	default:
		cutoff := now.Add(-cb.window)
		kept := cb.recent[:0]
		for _, at := range cb.recent {
			if at.After(cutoff) {
				kept = append(kept, at)
			}
		}
		cb.recent = append(kept, now)
		if len(cb.recent) >= cb.threshold {
			cb.trip(now)
			tripped = true
		}
	}
	cb.mu.Unlock()

	if tripped {
		EmitBreakerOpened(cb.threshold)
	}
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.state = breakerOpen
	cb.openUntil = now.Add(cb.openDuration)
	cb.probing = false
	cb.recent = cb.recent[:0]
}

// RecordSuccess closes the breaker and forgets earlier failures.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.recent = cb.recent[:0]
	cb.openUntil = time.Time{}
	cb.probing = false
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	if cb == nil {
		return breakerClosed.String()
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}
