package infra

import (
	"errors"
	"sync"
	"time"
)

// CBState is the position of a CircuitBreaker: closed, open or half-open.
type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned by Execute without calling the partner.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig tunes a breaker. Zero values fall back to DefaultCBConfig.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive counted failures that open the circuit
	SuccessThreshold int           // half-open successes needed to close it again
	OpenTimeout      time.Duration // cool-down before the first probe

	// Counts decides which errors move the breaker; nil counts every error.
	// Rejections such as a malformed invoice say nothing about partner health.
	Counts func(error) bool
	// OnTransition observes every state change, outside the lock.
	OnTransition func(name string, from, to CBState)
	Now          func() time.Time
}

// DefaultCBConfig is the configuration of the Siigo invoicing breaker.
func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "siigo",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
	}
}

// CBSnapshot is the externally visible breaker state (health endpoint).
type CBSnapshot struct {
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Failures int       `json:"consecutive_failures"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
}

// CircuitBreaker guards calls to an external partner so that an outage turns
// into fast failures instead of piled-up requests.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     CBState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// State reports the current state; an open circuit whose cool-down elapsed
// is reported (and moved to) half-open.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	from, to := cb.advanceLocked()
	state := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return state
}

func (cb *CircuitBreaker) Snapshot() CBSnapshot {
	state := cb.State()
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := CBSnapshot{Name: cb.cfg.Name, State: state.String(), Failures: cb.failures}
	if state != CBClosed {
		s.OpenedAt = cb.openedAt
	}
	return s
}

// Execute calls fn unless the circuit is open. Errors rejected by Counts are
// returned untouched and leave the counters alone.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.State() == CBOpen {
		return ErrCircuitOpen
	}

	err := fn()

	counted := err != nil && (cb.cfg.Counts == nil || cb.cfg.Counts(err))
	if err != nil && !counted {
		return err
	}

	cb.mu.Lock()
	from := cb.state
	if counted {
		cb.recordFailureLocked()
	} else {
		cb.recordSuccessLocked()
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return err
}

func (cb *CircuitBreaker) advanceLocked() (from, to CBState) {
	from = cb.state
	if cb.state == CBOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.state = CBHalfOpen
		cb.successes = 0
	}
	return from, cb.state
}

func (cb *CircuitBreaker) recordFailureLocked() {
	cb.failures++
	switch {
	case cb.state == CBHalfOpen:
		cb.trip()
	case cb.state == CBClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.trip()
	}
}

func (cb *CircuitBreaker) recordSuccessLocked() {
	if cb.state != CBHalfOpen {
		cb.failures = 0
		return
	}
	cb.successes++
	if cb.successes >= cb.cfg.SuccessThreshold {
		cb.state = CBClosed
		cb.failures = 0
		cb.successes = 0
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = CBOpen
	cb.openedAt = cb.cfg.Now()
	cb.successes = 0
}

func (cb *CircuitBreaker) notify(from, to CBState) {
	if from != to && cb.cfg.OnTransition != nil {
		cb.cfg.OnTransition(cb.cfg.Name, from, to)
	}
}
