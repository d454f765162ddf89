package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	ErrorThreshold      = 0.5
	MinRequests         = 10
	TimeoutDuration     = 30 * time.Second
	HalfOpenMaxRequests = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	errHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

// BreakerSettings tunes a CircuitBreaker. Zero values use the package constants.
type BreakerSettings struct {
	Name          string
	ErrorRate     float64
	MinRequests   int
	OpenTimeout   time.Duration
	HalfOpenLimit int
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker stops calling a failing collaborator for a cool-down period.
type CircuitBreaker struct {
	mu              sync.Mutex
	settings        BreakerSettings
	state           State
	failures        int
	successes       int
	requests        int
	lastFailureTime time.Time
	now             func() time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithSettings(BreakerSettings{})
}

func NewCircuitBreakerWithSettings(s BreakerSettings) *CircuitBreaker {
	if s.ErrorRate <= 0 {
		s.ErrorRate = ErrorThreshold
	}
	if s.MinRequests <= 0 {
		s.MinRequests = MinRequests
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = TimeoutDuration
	}
	if s.HalfOpenLimit <= 0 {
		s.HalfOpenLimit = HalfOpenMaxRequests
	}
	return &CircuitBreaker{
		settings: s,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Call runs fn unless the breaker is open. Only errors for which counts returns
// true are recorded as failures; a nil counts treats every error as a failure.
func (cb *CircuitBreaker) Call(fn func() error) error {
	return cb.CallCounting(fn, nil)
}

func (cb *CircuitBreaker) CallCounting(fn func() error, counts func(error) bool) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) >= cb.settings.OpenTimeout {
			cb.transitionToHalfOpenLocked()
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen && cb.requests >= cb.settings.HalfOpenLimit {
		cb.mu.Unlock()
		return errHalfOpenTooManyRequests
	}
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr != nil && (counts == nil || counts(callErr)) {
		cb.failures++
		cb.requests++

		if cb.state == StateHalfOpen {
			cb.tripToOpenLocked()
		} else {
			cb.evaluateState()
		}

		return callErr
	}

	cb.successes++
	cb.requests++

	if cb.state == StateHalfOpen && cb.successes >= cb.settings.HalfOpenLimit {
		cb.setStateLocked(StateClosed)
		cb.resetCountersLocked()
	}

	return callErr
}

func (cb *CircuitBreaker) evaluateState() {
	if cb.requests < cb.settings.MinRequests {
		return
	}

	errorRate := float64(cb.failures) / float64(cb.requests)
	if errorRate >= cb.settings.ErrorRate {
		cb.tripToOpenLocked()
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
}

func (cb *CircuitBreaker) transitionToHalfOpenLocked() {
	cb.setStateLocked(StateHalfOpen)
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) tripToOpenLocked() {
	cb.setStateLocked(StateOpen)
	cb.lastFailureTime = cb.now()
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) setStateLocked(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}
