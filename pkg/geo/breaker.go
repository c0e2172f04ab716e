package geo

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
		return "half_open"
	default:
		return "closed"
	}
}

// breaker is a per-provider circuit breaker. After failureThreshold
// consecutive failures the breaker opens and the provider is skipped
// until recoveryTimeout elapses, at which point a limited number of
// half-open probes decide whether to close it again.
type breaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMax      int

	mu            sync.Mutex
	state         breakerState
	failures      int
	successes     int
	halfOpenCalls int
	lastFailure   time.Time
	now           func() time.Time
}

func newBreaker(failureThreshold int, recoveryTimeout time.Duration, halfOpenMax int) *breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	if halfOpenMax <= 0 {
		halfOpenMax = 3
	}
	return &breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenMax:      halfOpenMax,
		now:              time.Now,
	}
}

// allow reports whether a request may be sent to the provider.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.now().Sub(b.lastFailure) > b.recoveryTimeout {
			b.state = breakerHalfOpen
			b.halfOpenCalls = 1
			b.successes = 0
			return true
		}
		return false
	default: // half-open
		if b.halfOpenCalls < b.halfOpenMax {
			b.halfOpenCalls++
			return true
		}
		return false
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.successes++
		if b.successes >= b.halfOpenMax {
			b.state = breakerClosed
			b.failures = 0
			b.successes = 0
		}
		return
	}
	b.failures = 0
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		return
	}
	if b.failures >= b.failureThreshold {
		b.state = breakerOpen
	}
}

func (b *breaker) currentState() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
