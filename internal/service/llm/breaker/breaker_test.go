package breaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"llmarena/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errUpstream = errors.New("upstream 500")

func newTestBreaker(clock *fakeClock) *Breaker {
	return New("openai", Config{
		FailureThreshold: 3,
		RecoveryTimeout:  10 * time.Second,
		MonitoringPeriod: 30 * time.Second,
		Now:              clock.Now,
	})
}

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i+1, err)
		}
		clock.Advance(time.Second)
	}

	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}
	if b.FailureCount() != 3 {
		t.Errorf("expected failure count 3, got %d", b.FailureCount())
	}

	var invoked atomic.Bool
	err := b.Execute(ctx, func(context.Context) error {
		invoked.Store(true)
		return nil
	})

	var cbErr *domain.CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected CircuitBreakerError, got %v", err)
	}
	if invoked.Load() {
		t.Error("function must not be invoked while OPEN")
	}
	if cbErr.Provider != "openai" || cbErr.FailureCount != 3 {
		t.Errorf("unexpected error fields: %+v", cbErr)
	}
	if cbErr.RetryAfter <= 0 || cbErr.RetryAfter > 10*time.Second {
		t.Errorf("unexpected retry after: %v", cbErr.RetryAfter)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name           string
		trial          func(context.Context) error
		wantState      State
		wantFailures   int
		wantRejectNext bool
	}{
		{
			name:           "trial success closes",
			trial:          succeed,
			wantState:      StateClosed,
			wantFailures:   0,
			wantRejectNext: false,
		},
		{
			name:           "trial failure reopens",
			trial:          fail,
			wantState:      StateOpen,
			wantFailures:   4,
			wantRejectNext: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			b := newTestBreaker(clock)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				_ = b.Execute(ctx, fail)
			}

			clock.Advance(5 * time.Second)
			if err := b.Execute(ctx, succeed); err == nil {
				t.Fatal("expected rejection before recovery timeout")
			}

			clock.Advance(6 * time.Second)

			var invoked bool
			_ = b.Execute(ctx, func(ctx context.Context) error {
				invoked = true
				if b.State() != StateHalfOpen {
					t.Errorf("expected HALF_OPEN during trial call, got %s", b.State())
				}
				return tt.trial(ctx)
			})
			if !invoked {
				t.Fatal("trial call was not attempted after recovery timeout")
			}

			if b.State() != tt.wantState {
				t.Errorf("expected %s, got %s", tt.wantState, b.State())
			}
			if b.FailureCount() != tt.wantFailures {
				t.Errorf("expected failure count %d, got %d", tt.wantFailures, b.FailureCount())
			}

			err := b.Execute(ctx, succeed)
			var cbErr *domain.CircuitBreakerError
			if rejected := errors.As(err, &cbErr); rejected != tt.wantRejectNext {
				t.Errorf("expected rejection=%v on next call, got err=%v", tt.wantRejectNext, err)
			}
		})
	}
}

func TestBreaker_ReopenResetsRecoveryTimer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}
	clock.Advance(11 * time.Second)
	_ = b.Execute(ctx, fail) // failed trial

	clock.Advance(9 * time.Second)
	if err := b.Execute(ctx, succeed); err == nil {
		t.Fatal("expected rejection: recovery timer should restart from the failed trial")
	}

	clock.Advance(2 * time.Second)
	if err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("expected trial call to be admitted, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", b.State())
	}
}

func TestBreaker_FailuresOutsideMonitoringPeriod(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	clock.Advance(31 * time.Second)
	_ = b.Execute(ctx, fail)

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED, stale failures must not count; got %s", b.State())
	}
	if b.FailureCount() != 1 {
		t.Errorf("expected failure count 1, got %d", b.FailureCount())
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, succeed)
	_ = b.Execute(ctx, fail)

	if b.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", b.State())
	}
	if b.FailureCount() != 1 {
		t.Errorf("expected failure count 1, got %d", b.FailureCount())
	}
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}

	if b.State() != StateClosed || b.FailureCount() != 0 {
		t.Errorf("cancellation changed breaker: state=%s failures=%d", b.State(), b.FailureCount())
	}
}

func TestBreaker_CancelledTrialReleasesSlot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	clock.Advance(11 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })

	if err := b.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("expected a new trial after a cancelled one, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", b.State())
	}
}

func TestBreaker_SingleTrial(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}
	clock.Advance(11 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	const concurrent = 10
	var rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var cbErr *domain.CircuitBreakerError
			if err := b.Execute(ctx, succeed); errors.As(err, &cbErr) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if rejected.Load() != concurrent {
		t.Errorf("expected all %d concurrent calls rejected during trial, got %d", concurrent, rejected.Load())
	}
	if b.State() != StateClosed {
		t.Errorf("expected CLOSED after trial success, got %s", b.State())
	}
}

func TestBreaker_StaleCallDoesNotDecideHalfOpen(t *testing.T) {
	tests := []struct {
		name  string
		stale error
	}{
		{name: "stale success", stale: nil},
		{name: "stale failure", stale: errUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			b := newTestBreaker(clock)
			ctx := context.Background()

			// Admitted while CLOSED, finishes during HALF_OPEN
			releaseStale := make(chan struct{})
			staleStarted := make(chan struct{})
			staleDone := make(chan error, 1)
			go func() {
				staleDone <- b.Execute(ctx, func(context.Context) error {
					close(staleStarted)
					<-releaseStale
					return tt.stale
				})
			}()
			<-staleStarted

			for i := 0; i < 3; i++ {
				_ = b.Execute(ctx, fail)
			}
			clock.Advance(11 * time.Second)

			releaseTrial := make(chan struct{})
			trialStarted := make(chan struct{})
			trialDone := make(chan error, 1)
			go func() {
				trialDone <- b.Execute(ctx, func(context.Context) error {
					close(trialStarted)
					<-releaseTrial
					return nil
				})
			}()
			<-trialStarted

			close(releaseStale)
			<-staleDone

			if b.State() != StateHalfOpen {
				t.Fatalf("expected HALF_OPEN while the trial runs, got %s", b.State())
			}
			var cbErr *domain.CircuitBreakerError
			if err := b.Execute(ctx, succeed); !errors.As(err, &cbErr) {
				t.Fatalf("expected rejection while the trial runs, got %v", err)
			}

			close(releaseTrial)
			if err := <-trialDone; err != nil {
				t.Fatalf("trial call failed: %v", err)
			}
			if b.State() != StateClosed || b.FailureCount() != 0 {
				t.Errorf("expected CLOSED with no failures, got %s/%d", b.State(), b.FailureCount())
			}
		})
	}
}

func TestBreaker_StaleFailureWhileOpenKeepsTimer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return errUpstream
		})
	}()
	<-started

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}
	clock.Advance(9 * time.Second)
	close(release)
	<-done

	if b.FailureCount() != 3 {
		t.Errorf("expected failure count 3, got %d", b.FailureCount())
	}
	clock.Advance(2 * time.Second)
	if err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("expected trial call after the original recovery timeout, got %v", err)
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var transitions []string
	b := New("anthropic", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		MonitoringPeriod: time.Minute,
		Now:              clock.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, string(from)+"->"+string(to))
		},
	})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	clock.Advance(2 * time.Second)
	_ = b.Execute(ctx, succeed)

	want := []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}
