package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kbukum/voicekit/process"
	"github.com/kbukum/voicekit/voice"
)

// Espeak drives espeak-ng playing through the default audio device. Speak
// returns once the process started and reports the end of the utterance
// through a callback, the way thread-bound native synthesizers do.
type Espeak struct {
	runner process.Runner
	binary string

	mu      sync.Mutex
	current process.Process
	opened  bool
}

// NewEspeak creates an espeak-ng engine using binary (e.g. "espeak-ng").
func NewEspeak(runner process.Runner, binary string) *Espeak {
	return &Espeak{runner: runner, binary: binary}
}

// Open verifies the binary runs.
func (e *Espeak) Open(ctx context.Context) error {
	if err := probe(ctx, e.runner, "espeak", e.binary, "--version"); err != nil {
		return err
	}
	e.mu.Lock()
	e.opened = true
	e.mu.Unlock()
	return nil
}

// Voices lists installed voices.
func (e *Espeak) Voices(ctx context.Context) ([]voice.VoiceHandle, error) {
	res, err := e.runner.Run(ctx, process.Command{Binary: e.binary, Args: []string{"--voices"}})
	if err != nil {
		return nil, fmt.Errorf("espeak: list voices: %w", err)
	}
	return ParseEspeakVoices(res.Text()), nil
}

// Speak starts speaking text with voiceID ("" for the default voice).
// onDone is called exactly once when the utterance ends; its error is
// process.ErrStopped when Stop interrupted it.
func (e *Espeak) Speak(ctx context.Context, voiceID, text string, onDone func(error)) error {
	e.mu.Lock()
	if !e.opened {
		e.mu.Unlock()
		return errors.New("espeak: engine not opened")
	}

	args := []string{"--stdin"}
	if voiceID != "" {
		args = append(args, "-v", voiceID)
	}
	p, err := e.runner.Start(context.WithoutCancel(ctx), process.Command{
		Binary: e.binary,
		Args:   args,
		Stdin:  strings.NewReader(text),
	})
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("espeak: speak: %w", err)
	}
	prev := e.current
	e.current = p
	e.mu.Unlock()

	if prev != nil {
		_ = prev.Stop(context.WithoutCancel(ctx))
	}

	go func() {
		err := p.Wait()
		e.mu.Lock()
		if e.current == p {
			e.current = nil
		}
		e.mu.Unlock()
		onDone(err)
	}()
	return nil
}

// Speaking reports whether an utterance is in flight.
func (e *Espeak) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Stop interrupts the current utterance. It is a no-op when idle.
func (e *Espeak) Stop(ctx context.Context) error {
	e.mu.Lock()
	p := e.current
	e.current = nil
	e.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Stop(ctx)
}

// Close stops any utterance and marks the engine closed.
func (e *Espeak) Close(ctx context.Context) error {
	err := e.Stop(ctx)
	e.mu.Lock()
	e.opened = false
	e.mu.Unlock()
	return err
}
