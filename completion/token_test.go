package completion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveOnce(t *testing.T) {
	tok := New[string]()
	if tok.Fulfilled() {
		t.Fatal("new token must be pending")
	}
	if _, err := tok.Result(); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}

	if !tok.Resolve("first") {
		t.Fatal("first Resolve should win")
	}
	if tok.Resolve("second") {
		t.Error("second Resolve must be a no-op")
	}
	if tok.Reject(errors.New("late")) {
		t.Error("Reject after Resolve must be a no-op")
	}
	if tok.Cancel() {
		t.Error("Cancel after Resolve must be a no-op")
	}

	v, err := tok.Result()
	if v != "first" || err != nil {
		t.Errorf("Result() = %q, %v", v, err)
	}
	select {
	case <-tok.Done():
	default:
		t.Error("Done should be closed")
	}
}

func TestAwaitReturnsResolvedValue(t *testing.T) {
	tok := New[int]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		tok.Resolve(7)
	}()
	v, err := tok.Await(context.Background(), time.Second)
	if err != nil || v != 7 {
		t.Errorf("Await() = %d, %v", v, err)
	}
}

func TestAwaitRejected(t *testing.T) {
	cause := errors.New("engine failed")
	tok := New[struct{}]()
	tok.Reject(cause)
	if _, err := tok.Await(context.Background(), time.Second); !errors.Is(err, cause) {
		t.Errorf("expected engine error, got %v", err)
	}
}

func TestAwaitTimeoutFulfillsToken(t *testing.T) {
	tok := New[string]()
	_, err := tok.Await(context.Background(), 10*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}

	// A completion delivered after the ceiling must not fulfill again.
	if tok.Resolve("late") {
		t.Error("late Resolve must not fulfill a timed-out token")
	}
	if _, err := tok.Result(); !errors.Is(err, ErrTimedOut) {
		t.Errorf("result must stay timed out, got %v", err)
	}
}

func TestAwaitContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tok := New[int]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := tok.Await(ctx, time.Minute)
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestAwaitWithoutCeiling(t *testing.T) {
	tok := New[int]()
	go tok.Resolve(1)
	v, err := tok.Await(context.Background(), 0)
	if err != nil || v != 1 {
		t.Errorf("Await() = %d, %v", v, err)
	}
}

func TestCancel(t *testing.T) {
	tok := New[int]()
	if !tok.Cancel() {
		t.Fatal("Cancel on a pending token should win")
	}
	if _, err := tok.Await(context.Background(), time.Second); !errors.Is(err, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
}

func TestConcurrentFulfillmentHasOneWinner(t *testing.T) {
	tok := New[int]()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var won bool
			switch i % 3 {
			case 0:
				won = tok.Resolve(i)
			case 1:
				won = tok.Reject(errors.New("x"))
			default:
				won = tok.Cancel()
			}
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}
