package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the position of a breaker.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast
	StateHalfOpen              // probing whether the dependency recovered
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrOpen is returned without calling the dependency while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker. Zero values fall back to defaults.
type Settings struct {
	MaxFailures      int
	FailureRate      float64
	MinRequests      int
	Cooldown         time.Duration
	SuccessThreshold int
}

// Breaker stops hammering a remote endpoint that keeps failing.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	requests        int
	lastStateChange time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, s Settings) *Breaker {
	if s.MaxFailures <= 0 {
		s.MaxFailures = 5
	}
	if s.FailureRate <= 0 || s.FailureRate > 1 {
		s.FailureRate = 0.5
	}
	if s.MinRequests <= 0 {
		s.MinRequests = 4
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 1
	}
	return &Breaker{name: name, settings: s, now: time.Now, state: StateClosed}
}

// Name identifies the protected dependency in logs.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the breaker is open. Context cancellation is not counted as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.lastStateChange) < b.settings.Cooldown {
		return ErrOpen
	}
	b.setState(StateHalfOpen)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	if err != nil {
		b.failures++
		if b.state == StateHalfOpen {
			b.setState(StateOpen)
			return
		}
		rate := float64(b.failures) / float64(b.requests)
		if b.failures >= b.settings.MaxFailures || (b.requests >= b.settings.MinRequests && rate >= b.settings.FailureRate) {
			b.setState(StateOpen)
		}
		return
	}

	b.successes++
	switch b.state {
	case StateHalfOpen:
		if b.successes >= b.settings.SuccessThreshold {
			b.setState(StateClosed)
		}
	case StateClosed:
		if b.successes > b.failures {
			b.failures = 0
		}
	}
}

// setState resets the counters; callers hold the lock.
func (b *Breaker) setState(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0
	b.requests = 0
	b.lastStateChange = b.now()
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
}
