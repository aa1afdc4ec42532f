package recovery

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker's three-state machine.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "Closed"
	case CircuitOpen:
		return "Open"
	case CircuitHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// CircuitBreaker stops an unhealthy component from being hammered with
// retries: after FailureThreshold consecutive failures it opens and fails
// fast until ResetTimeout elapses, then allows a half-open probe window
// before fully closing again.
type CircuitBreaker struct {
	mu sync.Mutex

	state      CircuitState
	failures   uint32
	threshold  uint32
	openedAt   time.Time
	resetAfter time.Duration

	halfOpenSuccesses uint32
	halfOpenRequired  uint32
}

// NewCircuitBreaker constructs a closed circuit breaker.
func NewCircuitBreaker(failureThreshold uint32, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		threshold:        failureThreshold,
		resetAfter:       resetTimeout,
		halfOpenRequired: 2,
	}
}

// CanAttempt reports whether an operation may proceed, transitioning Open
// to HalfOpen once the reset timeout has elapsed.
func (b *CircuitBreaker) CanAttempt(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if now.Sub(b.openedAt) >= b.resetAfter {
			b.state = CircuitHalfOpen
			b.halfOpenSuccesses = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess registers a successful attempt.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		b.failures = 0
	case CircuitHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.halfOpenRequired {
			b.state = CircuitClosed
			b.failures = 0
			b.halfOpenSuccesses = 0
		}
	}
}

// RecordFailure registers a failed attempt, opening the circuit if the
// failure threshold is reached.
func (b *CircuitBreaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = CircuitOpen
			b.openedAt = now
		}
	case CircuitHalfOpen:
		b.state = CircuitOpen
		b.openedAt = now
		b.halfOpenSuccesses = 0
	case CircuitOpen:
		b.openedAt = now
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
