package testutil

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kbukum/voicekit/process"
)

// FakeProcess is a process.Process controlled by the test. It runs until
// Exit or Stop is called.
type FakeProcess struct {
	Command process.Command

	stdout io.ReadCloser
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	err    error
	stops  int
}

var _ process.Process = (*FakeProcess)(nil)

// NewFakeProcess creates a running fake. stdout may be empty.
func NewFakeProcess(cmd process.Command, stdout string) *FakeProcess {
	p := &FakeProcess{Command: cmd, done: make(chan struct{})}
	if cmd.CaptureStdout {
		p.stdout = io.NopCloser(strings.NewReader(stdout))
	}
	return p
}

// Exit ends the process with err. Only the first call has an effect.
func (p *FakeProcess) Exit(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

// Stdin returns everything the command was given on stdin.
func (p *FakeProcess) Stdin() string {
	if p.Command.Stdin == nil {
		return ""
	}
	data, _ := io.ReadAll(p.Command.Stdin)
	return string(data)
}

// Stops returns how many times Stop found the process running.
func (p *FakeProcess) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

// Pid returns a fixed fake pid.
func (p *FakeProcess) Pid() int { return 4242 }

// Stdout returns the scripted stdout.
func (p *FakeProcess) Stdout() io.ReadCloser { return p.stdout }

// Done is closed when the process exits.
func (p *FakeProcess) Done() <-chan struct{} { return p.done }

// Wait blocks until Exit or Stop.
func (p *FakeProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop ends a running process with process.ErrStopped.
func (p *FakeProcess) Stop(context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
	p.Exit(process.ErrStopped)
	return nil
}

// FakeRunner is a scripted process.Runner.
type FakeRunner struct {
	mu sync.Mutex
	// Outputs maps "binary arg1 arg2" to the stdout returned by Run.
	Outputs map[string]string
	// RunErrors maps "binary arg1 arg2" to the error returned by Run.
	RunErrors map[string]error
	// StartErr, when set, is returned by every Start.
	StartErr error
	// StartStdout is the stdout given to processes started with CaptureStdout.
	StartStdout string
	// AutoExit makes started processes exit immediately with a nil error.
	AutoExit bool

	runs    []process.Command
	started []*FakeProcess
	notify  chan *FakeProcess
}

var _ process.Runner = (*FakeRunner)(nil)

// NewFakeRunner creates an empty runner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Outputs:   map[string]string{},
		RunErrors: map[string]error{},
		notify:    make(chan *FakeProcess, 64),
	}
}

// Key builds the lookup key for Outputs and RunErrors.
func Key(binary string, args ...string) string {
	return strings.Join(append([]string{binary}, args...), " ")
}

// Run returns the scripted output for cmd.
func (r *FakeRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	key := Key(cmd.Binary, cmd.Args...)
	r.mu.Lock()
	r.runs = append(r.runs, cmd)
	out, hasOut := r.Outputs[key]
	err := r.RunErrors[key]
	r.mu.Unlock()

	if err != nil {
		return &process.Result{ExitCode: 1}, err
	}
	if !hasOut {
		return &process.Result{ExitCode: 127}, errors.New("fake runner: no output scripted for " + key)
	}
	return &process.Result{Stdout: []byte(out)}, nil
}

// Start returns a new FakeProcess for cmd.
func (r *FakeRunner) Start(ctx context.Context, cmd process.Command) (process.Process, error) {
	r.mu.Lock()
	if r.StartErr != nil {
		err := r.StartErr
		r.mu.Unlock()
		return nil, err
	}
	p := NewFakeProcess(cmd, r.StartStdout)
	r.started = append(r.started, p)
	autoExit := r.AutoExit
	r.mu.Unlock()

	if autoExit {
		p.Exit(nil)
	}
	select {
	case r.notify <- p:
	default:
	}
	return p, nil
}

// Runs returns every command passed to Run.
func (r *FakeRunner) Runs() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Command(nil), r.runs...)
}

// Started returns every process created by Start, oldest first.
func (r *FakeRunner) Started() []*FakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeProcess(nil), r.started...)
}

// Last returns the most recently started process, or nil.
func (r *FakeRunner) Last() *FakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.started) == 0 {
		return nil
	}
	return r.started[len(r.started)-1]
}

// NextStarted waits until a process is started or ctx ends.
func (r *FakeRunner) NextStarted(ctx context.Context) (*FakeProcess, error) {
	select {
	case p := <-r.notify:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
