package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kbukum/voicekit/notify"
	"github.com/kbukum/voicekit/process"
	"github.com/kbukum/voicekit/voice"
)

// Say drives the macOS say command. It never reports completion directly;
// when an utterance ends it posts voice.SynthesizerDidFinish to its center
// with the utterance id as the notification object.
type Say struct {
	runner process.Runner
	binary string
	center *notify.Center

	mu      sync.Mutex
	current process.Process
}

// NewSay creates a say engine posting to center.
func NewSay(runner process.Runner, binary string, center *notify.Center) *Say {
	return &Say{runner: runner, binary: binary, center: center}
}

// Voices lists installed voices.
func (s *Say) Voices(ctx context.Context) ([]voice.VoiceHandle, error) {
	res, err := s.runner.Run(ctx, process.Command{Binary: s.binary, Args: []string{"-v", "?"}})
	if err != nil {
		return nil, fmt.Errorf("say: list voices: %w", err)
	}
	return ParseSayVoices(res.Text()), nil
}

// StartSpeaking begins speaking text and returns without waiting.
func (s *Say) StartSpeaking(ctx context.Context, utteranceID, voiceID, text string) error {
	args := []string{"-f", "-"}
	if voiceID != "" {
		args = append([]string{"-v", voiceID}, args...)
	}

	s.mu.Lock()
	p, err := s.runner.Start(context.WithoutCancel(ctx), process.Command{
		Binary: s.binary,
		Args:   args,
		Stdin:  strings.NewReader(text),
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("say: speak: %w", err)
	}
	prev := s.current
	s.current = p
	s.mu.Unlock()

	// One utterance at a time: the newest replaces whatever still plays.
	if prev != nil {
		_ = prev.Stop(context.WithoutCancel(ctx))
	}

	go func() {
		err := p.Wait()
		s.mu.Lock()
		if s.current == p {
			s.current = nil
		}
		s.mu.Unlock()

		info := map[string]any{
			voice.InfoEngine:   "say",
			voice.InfoFinished: err == nil,
		}
		if err != nil && !errors.Is(err, process.ErrStopped) {
			info[voice.InfoError] = err.Error()
		}
		s.center.Post(voice.SynthesizerDidFinish, utteranceID, info)
	}()
	return nil
}

// StopSpeaking interrupts the current utterance. It is a no-op when idle.
func (s *Say) StopSpeaking(ctx context.Context) error {
	s.mu.Lock()
	p := s.current
	s.current = nil
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Stop(ctx)
}

// Speaking reports whether an utterance is in flight.
func (s *Say) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
