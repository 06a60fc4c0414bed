package breaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota + 1
	StateOpen
	StateHalfOpen
)

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

var ErrOpen = errors.New("circuit breaker is open")

// Breaker trips after maxFailures consecutive failures and rejects calls until
// openTimeout has elapsed. It then lets a single probe through; the probe's
// outcome closes or re-opens the circuit.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	openSince   time.Time
	openTimeout time.Duration
	probing     bool

	now      func() time.Time
	onChange func(from, to State)
}

type Option func(*Breaker)

// WithStateChange registers fn to be called on every transition. It runs with
// the breaker locked and must not call back into it.
func WithStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func New(maxFailures int, openTimeout time.Duration, opts ...Option) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if openTimeout <= 0 {
		openTimeout = 10 * time.Second
	}
	b := &Breaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		openTimeout: openTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by exactly one OnSuccess, OnFailure or OnAbort.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openSince) < b.openTimeout {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
}

// OnAbort releases an allowed call that produced no verdict, such as one the
// caller canceled. The state and failure count are left as they were.
func (b *Breaker) OnAbort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probing = false
		b.openSince = b.now()
		b.transition(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.maxFailures {
			b.openSince = b.now()
			b.transition(StateOpen)
		}
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	if b.onChange != nil && from != to {
		b.onChange(from, to)
	}
}
