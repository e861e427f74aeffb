package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
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

// ErrOpen is returned by Execute while the breaker rejects requests.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker guards a flaky dependency. After the failure ratio crosses the
// threshold the breaker opens and Execute fails fast until the timeout
// passes, then a single probe decides whether to close again. The feed loop
// wraps its Redis sink in one so a dead sink cannot stall message handling.
type Breaker struct {
	mu           sync.RWMutex
	state        State
	failures     uint32
	requests     uint32
	nextAttempt  time.Time
	threshold    uint32
	failureRatio float64
	timeout      time.Duration
	interval     time.Duration
	lastReset    time.Time
}

// New creates a breaker that evaluates the failure ratio once at least
// threshold requests were seen, and stays open for timeout.
func New(threshold uint32, failureRatio float64, timeout time.Duration) *Breaker {
	return &Breaker{
		state:        StateClosed,
		threshold:    threshold,
		failureRatio: failureRatio,
		timeout:      timeout,
		interval:     60 * time.Second,
		lastReset:    time.Now(),
	}
}

// Execute runs the given function if allowed
func (b *Breaker) Execute(fn func() error) error {
	if !b.allowRequest() {
		return ErrOpen
	}

	err := fn()
	b.recordResult(err == nil)
	return err
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	// Counts age out so one bad minute does not haunt the ratio forever.
	if now.Sub(b.lastReset) > b.interval {
		b.failures = 0
		b.requests = 0
		b.lastReset = now
		if b.state == StateClosed {
			return true
		}
	}

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.After(b.nextAttempt) {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	}

	return false
}

func (b *Breaker) recordResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	if !success {
		b.failures++
	}

	now := time.Now()

	switch b.state {
	case StateClosed:
		if b.requests >= b.threshold {
			failureRate := float64(b.failures) / float64(b.requests)
			if failureRate >= b.failureRatio {
				b.state = StateOpen
				b.nextAttempt = now.Add(b.timeout)
			}
		}
	case StateHalfOpen:
		if success {
			b.state = StateClosed
			b.failures = 0
			b.requests = 0
			b.lastReset = now
		} else {
			b.state = StateOpen
			b.nextAttempt = now.Add(b.timeout)
		}
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Counts returns current failure/request counts
func (b *Breaker) Counts() (requests, failures uint32) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.requests, b.failures
}
