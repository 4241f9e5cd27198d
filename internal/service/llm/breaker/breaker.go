package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"llmarena/internal/domain"
)

// State represents the circuit breaker state.
type State string

const (
	// StateClosed is normal operation - calls pass through.
	StateClosed State = "CLOSED"
	// StateOpen means too many failures - calls are rejected without being attempted.
	StateOpen State = "OPEN"
	// StateHalfOpen admits a single trial call to test recovery.
	StateHalfOpen State = "HALF_OPEN"
)

// Config configures breaker behavior.
type Config struct {
	// FailureThreshold is the number of failures within MonitoringPeriod before opening (default: 5).
	FailureThreshold int

	// RecoveryTimeout is how long to stay open before admitting a trial call (default: 60s).
	RecoveryTimeout time.Duration

	// MonitoringPeriod bounds how far apart counted failures may be (default: 120s).
	// A failure arriving more than MonitoringPeriod after the previous one restarts the count.
	MonitoringPeriod time.Duration

	// OnStateChange is invoked with the breaker's lock held on every transition.
	// It must not call back into the breaker.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock (tests).
	Now func() time.Time
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		MonitoringPeriod: 120 * time.Second,
	}
}

// Breaker isolates failures of one provider.
//
// Transitions are evaluated lazily on each call; there are no background timers.
// Safe for concurrent use.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	trialInFlight   bool
}

// New creates a closed breaker for the named provider.
func New(name string, config Config) *Breaker {
	defaults := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if config.MonitoringPeriod <= 0 {
		config.MonitoringPeriod = defaults.MonitoringPeriod
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Breaker{
		name:   name,
		config: config,
		now:    now,
		state:  StateClosed,
	}
}

// Name returns the provider name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the stored state. Pure observer: an expired OPEN state is
// only moved to HALF_OPEN by the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// LastFailureTime returns the time of the most recent counted failure (zero if none).
func (b *Breaker) LastFailureTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailureTime
}

// Execute runs fn unless the breaker rejects the call.
//
// Returns *domain.CircuitBreakerError when rejected (fn is not invoked),
// otherwise fn's error unchanged. A context.Canceled outcome is neither
// a success nor a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := b.allow()
	if err != nil {
		return err
	}

	callErr := fn(ctx)

	switch {
	case callErr == nil:
		b.recordSuccess(trial)
	case isCancellation(ctx, callErr):
		b.recordCancellation(trial)
	default:
		b.recordFailure(trial)
	}

	return callErr
}

// allow decides whether a call may proceed. trial is true for the single call
// admitted in HALF_OPEN; only that call may close or reopen the breaker.
func (b *Breaker) allow() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil

	case StateOpen:
		elapsed := b.now().Sub(b.lastFailureTime)
		if elapsed < b.config.RecoveryTimeout {
			return false, b.rejection(b.config.RecoveryTimeout - elapsed)
		}
		b.transitionTo(StateHalfOpen)
		b.trialInFlight = true
		return true, nil

	case StateHalfOpen:
		if b.trialInFlight {
			return false, b.rejection(time.Second)
		}
		b.trialInFlight = true
		return true, nil
	}

	return false, b.rejection(b.config.RecoveryTimeout)
}

// rejection builds the error for a rejected call. Must be called with lock held.
func (b *Breaker) rejection(retryAfter time.Duration) error {
	return &domain.CircuitBreakerError{
		Provider:     b.name,
		FailureCount: b.failureCount,
		RetryAfter:   retryAfter,
	}
}

// recordSuccess closes the breaker after a successful trial.
// A call admitted while CLOSED that finishes after the breaker left CLOSED
// is stale and does not change state.
func (b *Breaker) recordSuccess(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !trial && b.state != StateClosed {
		return
	}

	b.failureCount = 0
	b.trialInFlight = false
	b.transitionTo(StateClosed)
}

// recordFailure counts a failure while CLOSED and reopens after a failed trial.
// Stale failures from calls admitted before the breaker opened are ignored.
func (b *Breaker) recordFailure(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !trial && b.state != StateClosed {
		return
	}

	now := b.now()

	if b.state == StateClosed && !b.lastFailureTime.IsZero() &&
		now.Sub(b.lastFailureTime) > b.config.MonitoringPeriod {
		b.failureCount = 0
	}

	b.failureCount++
	b.lastFailureTime = now

	if trial {
		b.trialInFlight = false
		b.transitionTo(StateOpen)
		return
	}
	if b.failureCount >= b.config.FailureThreshold {
		b.transitionTo(StateOpen)
	}
}

func (b *Breaker) recordCancellation(trial bool) {
	if !trial {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialInFlight = false
}

// transitionTo changes state. Must be called with lock held.
func (b *Breaker) transitionTo(next State) {
	prev := b.state
	b.state = next
	if b.config.OnStateChange != nil && prev != next {
		b.config.OnStateChange(b.name, prev, next)
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.lastFailureTime = time.Time{}
	b.trialInFlight = false
	b.transitionTo(StateClosed)
}

// isCancellation reports whether the call ended because the caller went away.
func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return errors.Is(ctx.Err(), context.Canceled)
}
