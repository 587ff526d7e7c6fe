package qdemo

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation state
	CircuitOpen                         // Failure state, rejecting requests
	CircuitHalfOpen                     // Probationary state, allowing limited requests
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

/*
CircuitBreaker guards one execution target, such as "real-device". After
maxFailures consecutive failures it opens and rejects work until resetTimeout
has passed, then lets halfOpenMax probes through before closing again.

The circuit breaker operates in three states:
  - Closed: all requests are allowed
  - Open: failure threshold exceeded, all requests are rejected
  - Half-Open: limited requests test whether the target has recovered
*/
type CircuitBreaker struct {
	mu               sync.RWMutex
	name             string
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMax      int
	failureCount     int
	state            CircuitState
	openTime         time.Time
	halfOpenAttempts int
	metrics          *Metrics
}

func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  halfOpenMax,
		state:        CircuitClosed,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Observe attaches the metrics the breaker reports its state into.
func (cb *CircuitBreaker) Observe(metrics *Metrics) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.metrics = metrics
	cb.report()
}

func (cb *CircuitBreaker) Limit() bool {
	return !cb.Allow()
}

func (cb *CircuitBreaker) Renormalize() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.openTime) > cb.resetTimeout {
		cb.transition(CircuitHalfOpen)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	switch {
	case cb.state == CircuitHalfOpen:
		// a failed probe reopens immediately
		cb.openTime = time.Now()
		cb.transition(CircuitOpen)
	case cb.state == CircuitClosed && cb.failureCount >= cb.maxFailures:
		cb.openTime = time.Now()
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.halfOpenAttempts++
		if cb.halfOpenAttempts >= cb.halfOpenMax {
			cb.failureCount = 0
			cb.transition(CircuitClosed)
		}
	case CircuitClosed:
		cb.failureCount = 0
	}
}

// Allow reports whether a request may go through right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.openTime) > cb.resetTimeout {
			cb.transition(CircuitHalfOpen)
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.halfOpenAttempts < cb.halfOpenMax
	default:
		return false
	}
}

// transition expects cb.mu to be held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	log.Warn("circuit breaker", "circuit", cb.name, "from", cb.state, "to", to)
	cb.state = to
	if to == CircuitHalfOpen {
		cb.halfOpenAttempts = 0
	}
	cb.report()
}

func (cb *CircuitBreaker) report() {
	if cb.metrics != nil {
		cb.metrics.setBreakerState(cb.name, cb.state)
	}
}
