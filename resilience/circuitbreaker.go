// Package resilience implements the retry, timeout, circuit breaker,
// and rate limiter primitives shared by the dispatcher and queue
// layers.
package resilience

import (
	"sync"
	"time"

	"github.com/loomrun/loom/errs"
)

// CircuitState is the state of a CircuitBreaker.
//
// An admission-control breaker with the standard three-state shape:
// it opens on consecutive failure counts rather than queue depth or
// saturation.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the failure/success thresholds and
// cooldown for a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold  int
	SuccessThreshold  int
	Timeout           time.Duration
	HalfOpenRequests  int
}

// CircuitBreaker implements the closed/open/half-open state machine.
type CircuitBreaker struct {
	mu     sync.Mutex
	cfg    CircuitBreakerConfig
	state  CircuitState
	openedAt time.Time

	consecutiveFailures int
	consecutiveSuccesses int
	halfOpenAttempts     int
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 1
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a call should be attempted right now, advancing
// open->half-open transitions based on elapsed time as a side effect.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.Timeout {
		cb.state = StateHalfOpen
		cb.halfOpenAttempts = 0
		cb.consecutiveSuccesses = 0
	}

	switch cb.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		return cb.halfOpenAttempts < cb.cfg.HalfOpenRequests
	default:
		return true
	}
}

// RecordSuccess reports a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenAttempts++
		cb.consecutiveSuccesses++
		cb.consecutiveFailures = 0
		if cb.consecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.consecutiveSuccesses = 0
			cb.halfOpenAttempts = 0
		}
	case StateClosed:
		cb.consecutiveFailures = 0
	}
}

// RecordFailure reports a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenAttempts++
		cb.consecutiveSuccesses = 0
		if cb.halfOpenAttempts >= cb.cfg.HalfOpenRequests {
			cb.open()
		}
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.open()
		}
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.halfOpenAttempts = 0
}

// State returns the current state (thread-safe).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Call runs fn if the breaker admits it, recording the outcome.
// Returns errs.CircuitOpen without invoking fn if the breaker rejects.
func (cb *CircuitBreaker) Call(key string, fn func() error) error {
	if !cb.Allow() {
		return errs.CircuitOpen(key)
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// CircuitBreakerRegistry lazily creates one CircuitBreaker per key, all
// sharing cfg, serving the dispatcher's per-actorType breaker
// requirement.
type CircuitBreakerRegistry struct {
	mu        sync.Mutex
	breakers  map[string]*CircuitBreaker
	cfg       CircuitBreakerConfig
}

func NewCircuitBreakerRegistry(cfg CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{breakers: make(map[string]*CircuitBreaker), cfg: cfg}
}

// For returns the CircuitBreaker for key, creating it on first use.
func (r *CircuitBreakerRegistry) For(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(r.cfg)
		r.breakers[key] = cb
	}
	return cb
}
