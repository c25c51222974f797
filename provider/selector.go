package provider

import (
	"context"
	"net/http"

	"github.com/kbukum/voicekit/errors"
)

// ErrNoneAvailable is returned by selectors when no candidate is available.
var ErrNoneAvailable = errors.New(errors.ErrCodeUnavailable, "no available provider found", http.StatusServiceUnavailable)

// Selector picks a provider from an ordered candidate list.
type Selector[T Provider] interface {
	Select(ctx context.Context, candidates []T) (T, error)
}

// FirstAvailableSelector returns the first candidate, in list order, whose
// IsAvailable reports true. Later candidates are never probed once one
// is found.
type FirstAvailableSelector[T Provider] struct{}

// Select returns the first available candidate.
func (s FirstAvailableSelector[T]) Select(ctx context.Context, candidates []T) (T, error) {
	for _, p := range candidates {
		if p.IsAvailable(ctx) {
			return p, nil
		}
	}
	var zero T
	return zero, ErrNoneAvailable
}
