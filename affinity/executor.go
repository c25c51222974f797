package affinity

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/kbukum/voicekit/errors"
)

type threadKey struct{}

// Executor serializes work onto a single locked OS thread.
type Executor struct {
	name  string
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	closeOnce sync.Once
}

// New starts an executor whose goroutine is locked to its OS thread.
// name identifies the executor in errors.
func New(name string) *Executor {
	e := &Executor{
		name:  name,
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	started := make(chan struct{})
	go e.loop(started)
	<-started
	return e
}

func (e *Executor) loop(started chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.done)
	close(started)

	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.quit:
			// Run work queued before Close so Post callers are not dropped.
			for {
				select {
				case fn := <-e.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// OnThread reports whether ctx was handed out by this executor, i.e. the
// caller is already running on the designated thread.
func (e *Executor) OnThread(ctx context.Context) bool {
	owner, _ := ctx.Value(threadKey{}).(*Executor)
	return owner == e
}

// Do runs fn on the designated thread and waits for it to return. The ctx
// passed to fn marks the thread, so nested Do calls made with it run inline
// instead of deadlocking. If ctx ends first Do returns ctx.Err() and fn, if
// already started, still runs to completion.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.OnThread(ctx) {
		return fn(ctx)
	}
	if e.Closed() {
		return errors.Closed(e.name)
	}

	threadCtx := context.WithValue(ctx, threadKey{}, e)
	result := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- errors.Internal(fmt.Errorf("panic on %s thread: %v", e.name, r))
			}
		}()
		result <- fn(threadCtx)
	}

	select {
	case e.tasks <- task:
	case <-e.quit:
		return errors.Closed(e.name)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn on the designated thread without waiting. It reports false
// when the executor is closed. A panic in fn is recovered and dropped.
func (e *Executor) Post(fn func()) bool {
	if e.Closed() {
		return false
	}
	task := func() {
		defer func() { _ = recover() }()
		fn()
	}
	select {
	case e.tasks <- task:
		return true
	case <-e.quit:
		return false
	}
}

// Close stops accepting work, runs what was already queued, and releases the
// thread. It is safe to call more than once.
func (e *Executor) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	<-e.done
}

// Closed reports whether Close has been called.
func (e *Executor) Closed() bool {
	select {
	case <-e.quit:
		return true
	default:
		return false
	}
}
