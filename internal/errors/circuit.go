package errors

import (
	"fmt"
	"strconv"
	"sync"
)

// State represents the breaker state.
type State int

const (
	// StateClosed lets batches through.
	StateClosed State = iota
	// StateOpen means the write must stop.
	StateOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after a run of consecutive failed batches.
// A single successful batch resets the run. Once open it stays open for the
// lifetime of the breaker; a sync run owns exactly one.
type CircuitBreaker struct {
	name        string
	maxFailures int

	mu       sync.Mutex
	state    State
	failures int
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures open the circuit.
// Zero or less disables tripping.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// NewCircuitBreaker creates a breaker that opens after 5 consecutive failures.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:        name,
		maxFailures: 5,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current run of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Allow reports whether another batch may be sent.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateClosed
}

// RecordSuccess ends the current failure run.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateClosed {
		cb.failures = 0
	}
}

// RecordFailure extends the failure run. It returns ErrCodeCircuitOpen the
// moment the run reaches the limit, and nil otherwise.
func (cb *CircuitBreaker) RecordFailure() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		return nil
	}
	cb.failures++
	if cb.maxFailures > 0 && cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		return New(ErrCodeCircuitOpen,
			fmt.Sprintf("%s: %d consecutive batches rejected", cb.name, cb.failures), nil).
			WithDetail("breaker", cb.name).
			WithDetail("consecutive_failures", strconv.Itoa(cb.failures)).
			WithSuggestion("Check the search engine logs; every document in the last batches was rejected")
	}
	return nil
}
