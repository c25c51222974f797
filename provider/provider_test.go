package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/kbukum/voicekit/errors"
)

// testProvider implements the Provider interface for testing.
type testProvider struct {
	name      string
	available bool
	probes    int
}

func (p *testProvider) Name() string { return p.name }
func (p *testProvider) IsAvailable(ctx context.Context) bool {
	p.probes++
	return p.available
}

type testDeps struct {
	prefix string
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	reg := NewRegistry[*testProvider, testDeps]()
	reg.RegisterFactory("test", func(deps testDeps) (*testProvider, error) {
		return &testProvider{name: deps.prefix + "test", available: true}, nil
	})

	p, err := reg.Create("test", testDeps{prefix: "linux."})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Name() != "linux.test" {
		t.Errorf("expected name 'linux.test', got %q", p.Name())
	}
	if !reg.Has("test") || reg.Has("missing") {
		t.Error("unexpected Has result")
	}

	q, _ := reg.Create("test", testDeps{})
	if p == q {
		t.Error("each Create must return a fresh instance")
	}
}

func TestRegistryCreateUnregistered(t *testing.T) {
	reg := NewRegistry[*testProvider, testDeps]()
	_, err := reg.Create("missing", testDeps{})
	if err == nil {
		t.Fatal("expected error for unregistered factory")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Errorf("expected 'not registered' in error, got %q", err.Error())
	}
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry[*testProvider, testDeps]()
	cause := errors.New("binary not found")
	reg.RegisterFactory("broken", func(testDeps) (*testProvider, error) { return nil, cause })
	if _, err := reg.Create("broken", testDeps{}); !errors.Is(err, cause) {
		t.Errorf("expected factory error, got %v", err)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry[*testProvider, testDeps]()
	reg.RegisterFactory("beta", func(testDeps) (*testProvider, error) { return &testProvider{name: "beta"}, nil })
	reg.RegisterFactory("alpha", func(testDeps) (*testProvider, error) { return &testProvider{name: "alpha"}, nil })

	names := reg.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("expected sorted [alpha, beta], got %v", names)
	}
}

func TestFirstAvailableSelector(t *testing.T) {
	a := &testProvider{name: "a"}
	b := &testProvider{name: "b", available: true}
	c := &testProvider{name: "c", available: true}

	var s FirstAvailableSelector[*testProvider]
	p, err := s.Select(context.Background(), []*testProvider{a, b, c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != b {
		t.Errorf("expected b, got %s", p.Name())
	}
	if c.probes != 0 {
		t.Errorf("c must not be probed once b is selected, probes=%d", c.probes)
	}

	_, err = s.Select(context.Background(), []*testProvider{a})
	if !errors.Is(err, apperrors.Unavailable("")) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestFallbackSelectsFirstAvailable(t *testing.T) {
	a := &testProvider{name: "a"}
	b := &testProvider{name: "b", available: true}
	c := &testProvider{name: "c", available: true}
	noop := &testProvider{name: "noop"}

	fb := NewFallback(noop, a, b, c)
	p, live := fb.Select(context.Background())
	if !live || p != b {
		t.Fatalf("expected b, got %s (live=%v)", p.Name(), live)
	}
	if c.probes != 0 {
		t.Errorf("c must not be probed, probes=%d", c.probes)
	}

	// Re-evaluated on the next call.
	b.available = false
	p, live = fb.Select(context.Background())
	if !live || p != c {
		t.Fatalf("expected c after b became unavailable, got %s", p.Name())
	}
	if b.probes != 2 {
		t.Errorf("availability must be probed on every call, b.probes=%d", b.probes)
	}
}

func TestFallbackTerminus(t *testing.T) {
	noop := &testProvider{name: "noop"}
	fb := NewFallback(noop, &testProvider{name: "a"})

	p, live := fb.Select(context.Background())
	if live {
		t.Error("expected live=false when falling through to the terminus")
	}
	if p != noop || fb.Terminus() != noop {
		t.Errorf("expected terminus, got %s", p.Name())
	}

	empty := NewFallback(noop)
	if p, live := empty.Select(context.Background()); live || p != noop {
		t.Error("empty candidate list must select the terminus")
	}
}

func TestFallbackDescribeAndCandidates(t *testing.T) {
	a := &testProvider{name: "a"}
	b := &testProvider{name: "b", available: true}
	noop := &testProvider{name: "noop"}
	fb := NewFallback(noop, a, b)

	got := fb.Describe(context.Background())
	want := []Availability{
		{Name: "a"},
		{Name: "b", Available: true},
		{Name: "noop", Terminus: true},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	cands := fb.Candidates()
	if len(cands) != 3 || cands[2] != noop {
		t.Errorf("expected candidates followed by terminus, got %d", len(cands))
	}
}

type reverseSelector struct{}

func (reverseSelector) Select(ctx context.Context, c []*testProvider) (*testProvider, error) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].IsAvailable(ctx) {
			return c[i], nil
		}
	}
	return nil, ErrNoneAvailable
}

func TestFallbackWithSelector(t *testing.T) {
	b := &testProvider{name: "b", available: true}
	c := &testProvider{name: "c", available: true}
	fb := NewFallback(&testProvider{name: "noop"}, b, c).WithSelector(reverseSelector{})
	if p, _ := fb.Select(context.Background()); p != c {
		t.Errorf("expected custom selector to pick c, got %s", p.Name())
	}
}

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close(context.Context) error {
	c.closed = true
	return c.err
}

func TestCloseAll(t *testing.T) {
	first := errors.New("first")
	a := &closer{err: first}
	b := &closer{err: errors.New("second")}
	items := []any{a, "not closeable", b}

	err := CloseAll(context.Background(), items...)
	if !errors.Is(err, first) {
		t.Errorf("expected first error, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("every closeable must be closed")
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusHealthy:     "healthy",
		StatusDegraded:    "degraded",
		StatusUnavailable: "unavailable",
		Status(9):         "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

type breakerProvider struct {
	testProvider
	health HealthStatus
}

func (p *breakerProvider) Health(context.Context) HealthStatus { return p.health }

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		p        Provider
		want     Status
		wantLive bool
	}{
		{"available", &testProvider{name: "espeak", available: true}, StatusHealthy, true},
		{"unavailable", &testProvider{name: "say"}, StatusUnavailable, false},
		{"checker wins over probe", &breakerProvider{testProvider{name: "cloudspeech", available: true}, HealthStatus{Status: StatusUnavailable, Message: "circuit open"}}, StatusUnavailable, false},
		{"degraded is live", &breakerProvider{testProvider{name: "cloudspeech"}, HealthStatus{Status: StatusDegraded}}, StatusDegraded, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Check(context.Background(), tc.p)
			if got.Status != tc.want || got.Live() != tc.wantLive {
				t.Errorf("Check = %+v (live %v), want %s (live %v)", got, got.Live(), tc.want, tc.wantLive)
			}
		})
	}
}

func TestStatusMarshalText(t *testing.T) {
	b, err := json.Marshal(HealthStatus{Status: StatusDegraded})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"status":"degraded"}` {
		t.Errorf("got %s", b)
	}
}
