package provider

import "context"

// Provider is the base interface all providers must implement.
type Provider interface {
	// Name returns the provider's unique, stable name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	// It must not block on slow engine work.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from typed dependencies.
type Factory[T Provider, C any] func(deps C) (T, error)
