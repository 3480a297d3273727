package llmgateway

import (
	"sync"
	"time"
)

// circuitState mirrors the teacher's three-state circuit breaker
// (executor.CircuitBreaker), guarding the provider from being hammered
// once it starts failing consistently.
type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreakerConfig configures the breaker guarding LLM provider calls.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// DefaultCircuitBreakerConfig returns a conservative default.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}
}

// circuitBreaker is a minimal closed/open/half-open breaker. Not
// exported: it is an internal resilience detail of the Gateway, not part
// of its public contract.
type circuitBreaker struct {
	mu sync.Mutex

	cfg   CircuitBreakerConfig
	state circuitState

	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
}

func newCircuitBreaker(cfg CircuitBreakerConfig) *circuitBreaker {
	return &circuitBreaker{cfg: cfg, state: stateClosed}
}

// allow reports whether a call may proceed, transitioning open->half-open
// once the timeout has elapsed.
func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(cb.openedAt) >= cb.cfg.Timeout {
			cb.state = stateHalfOpen
			cb.consecutiveSuccesses = 0
			return true
		}
		return false
	case stateHalfOpen:
		return true
	default:
		return true
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	switch cb.state {
	case stateHalfOpen:
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.state = stateClosed
		}
	case stateOpen:
		cb.state = stateClosed
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++
	if cb.state == stateHalfOpen || cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		cb.state = stateOpen
		cb.openedAt = time.Now()
	}
}
