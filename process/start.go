package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Wait when the process ended because Stop was called.
var ErrStopped = errors.New("process: stopped")

// Process is a running subprocess.
type Process interface {
	// Pid returns the operating system process id.
	Pid() int
	// Stdout returns the read end of stdout when CaptureStdout was set, nil
	// otherwise. The caller owns it and must close it.
	Stdout() io.ReadCloser
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// Wait blocks until the process exits and returns its error.
	Wait() error
	// Stop terminates the process group, escalating to SIGKILL after the
	// grace period or when ctx ends. Stopping an exited process is a no-op.
	Stop(ctx context.Context) error
}

// Handle is the Process returned by Start.
type Handle struct {
	cmd     *exec.Cmd
	stdout  *os.File
	stderr  bytes.Buffer
	grace   time.Duration
	done    chan struct{}
	err     error
	stopped atomic.Bool
}

var _ Process = (*Handle)(nil)

// Start launches cmd and returns immediately. The process keeps running
// after ctx ends unless ctx is canceled, in which case it is terminated like
// Run does. Pass context.WithoutCancel to decouple it from a request.
func Start(ctx context.Context, cmd Command) (*Handle, error) {
	c, err := cmd.build(ctx)
	if err != nil {
		return nil, err
	}

	h := &Handle{cmd: c, grace: cmd.gracePeriod(), done: make(chan struct{})}
	c.Stderr = &h.stderr

	// A plain pipe keeps the read end valid after Wait, so stdout can be
	// handed to another process or read while the producer exits.
	var writeEnd *os.File
	if cmd.CaptureStdout {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("process: stdout pipe: %w", err)
		}
		h.stdout, writeEnd = r, w
		c.Stdout = w
	}

	if err := c.Start(); err != nil {
		if writeEnd != nil {
			_ = writeEnd.Close()
			_ = h.stdout.Close()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cmd.Binary)
		}
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}
	if writeEnd != nil {
		_ = writeEnd.Close()
	}

	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	switch {
	case h.stopped.Load():
		err = ErrStopped
	case err != nil:
		code := -1
		if h.cmd.ProcessState != nil {
			code = h.cmd.ProcessState.ExitCode()
		}
		err = &ExitError{Binary: h.cmd.Args[0], Code: code, Stderr: lastLine(h.stderr.Bytes()), Err: err}
	}
	h.err = err
	close(h.done)
}

// Pid returns the process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Stdout returns the read end of stdout, or nil without CaptureStdout.
func (h *Handle) Stdout() io.ReadCloser {
	if h.stdout == nil {
		return nil
	}
	return h.stdout
}

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the process exits.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Stop sends SIGTERM to the process group and SIGKILL after the grace period.
func (h *Handle) Stop(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	h.stopped.Store(true)
	if err := terminate(h.cmd); err != nil {
		select {
		case <-h.done:
			return nil
		default:
		}
		_ = kill(h.cmd)
	}

	timer := time.NewTimer(h.grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return nil
	case <-timer.C:
		_ = kill(h.cmd)
	case <-ctx.Done():
		_ = kill(h.cmd)
	}
	<-h.done
	return nil
}
