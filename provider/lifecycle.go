package provider

import "context"

// Initializable is optionally implemented by providers that need setup
// before handling requests (e.g., probe a binary, list installed voices).
// Init moves the provider to ready or failed; it may be called again after
// a failure to retry.
type Initializable interface {
	Init(ctx context.Context) error
}

// Closeable is optionally implemented by providers that hold resources
// requiring explicit cleanup (e.g., a designated thread, a client connection).
type Closeable interface {
	Close(ctx context.Context) error
}

// CloseAll closes every item implementing Closeable and returns the first
// error encountered. All items are closed regardless of earlier failures.
func CloseAll[T any](ctx context.Context, items ...T) error {
	var first error
	for _, item := range items {
		c, ok := any(item).(Closeable)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
