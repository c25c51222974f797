package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kbukum/voicekit/errors"
)

var errRefused = errors.New("stream refused")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
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

func newBreaker(clock *fakeClock, maxFailures int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "cloudspeech",
		MaxFailures: maxFailures,
		Cooldown:    time.Minute,
		Now:         clock.Now,
	})
}

func fail(cb *CircuitBreaker, err error) error {
	return cb.Execute(context.Background(), func(context.Context) error { return err })
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "x"})
	if cb.config.MaxFailures != 5 || cb.config.Cooldown != 30*time.Second || cb.config.HalfOpenMaxCalls != 1 {
		t.Errorf("unexpected defaults %+v", cb.config)
	}
	if cb.State() != StateClosed || !cb.Allows() {
		t.Error("new breaker should be closed")
	}
}

func TestCircuitBreaker_PassesContext(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "kiosk")

	err := cb.Execute(ctx, func(got context.Context) error {
		if got.Value(key{}) != "kiosk" {
			return errors.New("context not passed through")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := newFakeClock()
	cb := newBreaker(clock, 3)

	for i := 0; i < 3; i++ {
		if err := fail(cb, errRefused); !errors.Is(err, errRefused) {
			t.Fatalf("attempt %d: expected the engine error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(context.Context) error {
		t.Error("function should not have been called")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := newBreaker(newFakeClock(), 3)
	_ = fail(cb, errRefused)
	_ = fail(cb, errRefused)
	_ = fail(cb, nil)
	_ = fail(cb, errRefused)

	if s := cb.Snapshot(); s.State != StateClosed || s.Failures != 1 {
		t.Errorf("failures must be consecutive, got %s with %d", s.State, s.Failures)
	}
}

func TestCircuitBreaker_CancellationIsNeutral(t *testing.T) {
	cb := newBreaker(newFakeClock(), 1)
	_ = fail(cb, fmt.Errorf("listen: %w", context.Canceled))

	if s := cb.Snapshot(); s.State != StateClosed || s.Failures != 0 {
		t.Errorf("cancellation must not count, got %s with %d", s.State, s.Failures)
	}
	_ = fail(cb, context.DeadlineExceeded)
	if cb.State() != StateOpen {
		t.Error("a deadline is the engine's fault and should count")
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name  string
		probe error
		want  State
	}{
		{"successful probe closes", nil, StateClosed},
		{"failed probe reopens", errRefused, StateOpen},
		{"cancelled probe stays half-open", context.Canceled, StateHalfOpen},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			cb := newBreaker(clock, 1)
			_ = fail(cb, errRefused)

			clock.Advance(59 * time.Second)
			if cb.State() != StateOpen {
				t.Fatal("circuit should stay open during the cooldown")
			}
			clock.Advance(time.Second)
			if cb.State() != StateHalfOpen {
				t.Fatalf("expected half-open after the cooldown, got %s", cb.State())
			}

			_ = fail(cb, tc.probe)
			if got := cb.State(); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenAdmitsOneProbe(t *testing.T) {
	clock := newFakeClock()
	cb := newBreaker(clock, 1)
	_ = fail(cb, errRefused)
	clock.Advance(time.Minute)

	for range 3 {
		if !cb.Allows() {
			t.Fatal("Allows must not take the probe slot")
		}
	}

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			close(inProbe)
			<-release
			return nil
		})
	}()
	<-inProbe

	if cb.Allows() {
		t.Error("second probe should be refused while one is running")
	}
	if err := fail(cb, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen for a second probe, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after the probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_Snapshot(t *testing.T) {
	clock := newFakeClock()
	cb := newBreaker(clock, 2)
	_ = fail(cb, errRefused)

	if s := cb.Snapshot(); s.State != StateClosed || s.Failures != 1 || !s.RetryAt.IsZero() {
		t.Errorf("unexpected closed snapshot %+v", s)
	}
	_ = fail(cb, errRefused)
	s := cb.Snapshot()
	if s.State != StateOpen || !s.RetryAt.Equal(clock.Now().Add(time.Minute)) {
		t.Errorf("unexpected open snapshot %+v", s)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := newFakeClock()
	var changes []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "cloudspeech",
		MaxFailures: 1,
		Cooldown:    time.Second,
		Now:         clock.Now,
		OnStateChange: func(name string, from, to State) {
			changes = append(changes, fmt.Sprintf("%s:%s->%s", name, from, to))
		},
	})

	_ = fail(cb, errRefused)
	clock.Advance(time.Second)
	_ = fail(cb, nil)

	want := []string{
		"cloudspeech:closed->open",
		"cloudspeech:open->half-open",
		"cloudspeech:half-open->closed",
	}
	if fmt.Sprint(changes) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", changes, want)
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fail(cb, nil)
			_ = cb.Snapshot()
			_ = cb.Allows()
		}()
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreaker_OpenErrorIsUnavailable(t *testing.T) {
	cb := newBreaker(newFakeClock(), 1)
	_ = fail(cb, errRefused)

	err := fail(cb, nil)
	if !errors.Is(err, apperrors.Unavailable("")) {
		t.Errorf("expected unavailable error, got %v", err)
	}
	if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Details["provider"] != "cloudspeech" {
		t.Errorf("expected provider detail, got %v", err)
	}
}
