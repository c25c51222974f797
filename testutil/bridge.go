package testutil

import (
	"context"
	"sync"

	"github.com/kbukum/voicekit/voice"
)

// Invocation is one recorded FakeBridge.Invoke call.
type Invocation struct {
	Fn   string
	Args []any
}

// FakeBridge is a voice.HostBridge that answers EvalBool from a table and
// records Invoke calls.
type FakeBridge struct {
	mu sync.Mutex
	// Bools maps expressions to EvalBool results. Unknown expressions are false.
	Bools map[string]bool
	// EvalErr is returned by every EvalBool when set.
	EvalErr error
	// InvokeErrs maps function names to the error Invoke returns.
	InvokeErrs map[string]error
	// OnInvoke runs after an Invoke is recorded, before it returns.
	OnInvoke func(fn string, args []any)

	evals   []string
	invokes []Invocation
}

var _ voice.HostBridge = (*FakeBridge)(nil)

// NewFakeBridge creates a bridge answering the given expressions.
func NewFakeBridge(bools map[string]bool) *FakeBridge {
	if bools == nil {
		bools = map[string]bool{}
	}
	return &FakeBridge{Bools: bools, InvokeErrs: map[string]error{}}
}

// EvalBool looks expr up in Bools.
func (b *FakeBridge) EvalBool(ctx context.Context, expr string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evals = append(b.evals, expr)
	if b.EvalErr != nil {
		return false, b.EvalErr
	}
	return b.Bools[expr], nil
}

// Invoke records the call.
func (b *FakeBridge) Invoke(ctx context.Context, fn string, args ...any) error {
	b.mu.Lock()
	b.invokes = append(b.invokes, Invocation{Fn: fn, Args: args})
	err := b.InvokeErrs[fn]
	hook := b.OnInvoke
	b.mu.Unlock()
	if hook != nil {
		hook(fn, args)
	}
	return err
}

// SetBool changes the answer for expr.
func (b *FakeBridge) SetBool(expr string, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Bools[expr] = v
}

// SetInvokeErr makes Invoke(fn) fail with err; nil clears it.
func (b *FakeBridge) SetInvokeErr(fn string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InvokeErrs[fn] = err
}

// Invocations returns recorded Invoke calls, optionally filtered by fn.
func (b *FakeBridge) Invocations(fn string) []Invocation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Invocation
	for _, inv := range b.invokes {
		if fn == "" || inv.Fn == fn {
			out = append(out, inv)
		}
	}
	return out
}

// Evals returns every expression passed to EvalBool.
func (b *FakeBridge) Evals() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.evals...)
}

// RecordingSink is a voice.CallbackSink that records every callback.
type RecordingSink struct {
	mu      sync.Mutex
	Results []Transcript
	Errors  []string
	Ends    int
}

// Transcript is one recorded OnSpeechResult call.
type Transcript struct {
	Text    string
	IsFinal bool
}

var _ voice.CallbackSink = (*RecordingSink)(nil)

// OnSpeechResult records a transcript.
func (s *RecordingSink) OnSpeechResult(text string, isFinal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results = append(s.Results, Transcript{Text: text, IsFinal: isFinal})
}

// OnSpeechError records an error message.
func (s *RecordingSink) OnSpeechError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, message)
}

// OnSpeechEnd counts end events.
func (s *RecordingSink) OnSpeechEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ends++
}

// Snapshot returns copies of everything recorded so far.
func (s *RecordingSink) Snapshot() (results []Transcript, errs []string, ends int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transcript(nil), s.Results...), append([]string(nil), s.Errors...), s.Ends
}
