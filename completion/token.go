package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrTimedOut is recorded when the Await ceiling elapses first.
	ErrTimedOut = errors.New("completion: timed out")
	// ErrCanceled is recorded by Cancel and when the Await context ends first.
	ErrCanceled = errors.New("completion: canceled")
	// ErrPending is returned by Result before the token is fulfilled.
	ErrPending = errors.New("completion: pending")
)

// Token is a single-fulfillment future. The zero value is not usable; create
// tokens with New.
type Token[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New creates an unfulfilled token.
func New[T any]() *Token[T] {
	return &Token[T]{done: make(chan struct{})}
}

// Fulfill records value and err if the token is still pending. It reports
// whether this call was the one that fulfilled the token.
func (t *Token[T]) Fulfill(value T, err error) bool {
	won := false
	t.once.Do(func() {
		t.value = value
		t.err = err
		won = true
		close(t.done)
	})
	return won
}

// Resolve fulfills the token with value.
func (t *Token[T]) Resolve(value T) bool {
	return t.Fulfill(value, nil)
}

// Reject fulfills the token with err.
func (t *Token[T]) Reject(err error) bool {
	var zero T
	return t.Fulfill(zero, err)
}

// Cancel fulfills the token with ErrCanceled.
func (t *Token[T]) Cancel() bool {
	return t.Reject(ErrCanceled)
}

// Done is closed once the token is fulfilled.
func (t *Token[T]) Done() <-chan struct{} {
	return t.done
}

// Fulfilled reports whether the token has been fulfilled.
func (t *Token[T]) Fulfilled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Result returns the recorded outcome, or ErrPending if the token is not
// fulfilled yet.
func (t *Token[T]) Result() (T, error) {
	if !t.Fulfilled() {
		var zero T
		return zero, ErrPending
	}
	return t.value, t.err
}

// Await waits for fulfillment, bounded by ceiling and ctx. When the ceiling
// elapses first the token is fulfilled with ErrTimedOut; when ctx ends first
// it is fulfilled with ErrCanceled wrapping the context error. Either way a
// concurrent Resolve that won the race is returned instead. A ceiling of zero
// or less waits without a timer.
func (t *Token[T]) Await(ctx context.Context, ceiling time.Duration) (T, error) {
	var timeout <-chan time.Time
	if ceiling > 0 {
		timer := time.NewTimer(ceiling)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-t.done:
	case <-timeout:
		t.Reject(ErrTimedOut)
	case <-ctx.Done():
		t.Reject(fmt.Errorf("%w: %w", ErrCanceled, ctx.Err()))
	}
	<-t.done
	return t.value, t.err
}
