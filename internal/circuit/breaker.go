// Package circuit provides a small circuit breaker around the external
// analyzer. Repeated failures open the breaker so evaluations fall straight
// through to the rule path instead of burning the timeout on every call.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"    // analyzer calls allowed
	StateOpen     State = "open"      // calls skipped until cooldown passes
	StateHalfOpen State = "half_open" // one probe call allowed
)

// Config holds breaker tuning.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold" default:"3"`
	Cooldown         time.Duration `yaml:"cooldown" default:"2m"`
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 3, Cooldown: 2 * time.Minute}
}

// Breaker tracks consecutive analyzer failures.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	failures int
	openedAt time.Time
	now      func() time.Time
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Minute
	}
	return &Breaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// Allow reports whether a call may proceed. An open breaker transitions to
// half-open once the cooldown has passed, letting one probe through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	default:
		if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	}
}

// RecordSuccess closes the breaker and clears the failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
}

// RecordFailure counts a failure; the threshold opens the breaker, and a
// failed half-open probe re-opens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
