package provider

import (
	"context"
)

// Availability is a point-in-time view of one candidate.
type Availability struct {
	Name      string
	Available bool
	Terminus  bool
}

// Fallback selects among ordered candidates, falling through to a terminus
// that is always safe to call when none is available. Availability is
// re-evaluated on every Select; nothing is cached between calls.
type Fallback[T Provider] struct {
	candidates []T
	terminus   T
	selector   Selector[T]
}

// NewFallback creates a Fallback over candidates in priority order.
func NewFallback[T Provider](terminus T, candidates ...T) *Fallback[T] {
	return &Fallback[T]{
		candidates: append([]T(nil), candidates...),
		terminus:   terminus,
		selector:   FirstAvailableSelector[T]{},
	}
}

// WithSelector replaces the selection policy and returns the receiver.
func (f *Fallback[T]) WithSelector(s Selector[T]) *Fallback[T] {
	f.selector = s
	return f
}

// Select returns the provider that should serve the current call. The
// boolean is false when no candidate was available and the terminus was
// returned.
func (f *Fallback[T]) Select(ctx context.Context) (T, bool) {
	p, err := f.selector.Select(ctx, f.candidates)
	if err != nil {
		return f.terminus, false
	}
	return p, true
}

// Candidates returns the ordered candidates followed by the terminus.
func (f *Fallback[T]) Candidates() []T {
	out := make([]T, 0, len(f.candidates)+1)
	out = append(out, f.candidates...)
	return append(out, f.terminus)
}

// Terminus returns the fallback terminus.
func (f *Fallback[T]) Terminus() T {
	return f.terminus
}

// Describe probes every candidate and the terminus.
func (f *Fallback[T]) Describe(ctx context.Context) []Availability {
	out := make([]Availability, 0, len(f.candidates)+1)
	for _, p := range f.candidates {
		out = append(out, Availability{Name: p.Name(), Available: p.IsAvailable(ctx)})
	}
	return append(out, Availability{
		Name:      f.terminus.Name(),
		Available: f.terminus.IsAvailable(ctx),
		Terminus:  true,
	})
}
