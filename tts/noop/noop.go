// Package noop provides the text-to-speech fallback terminus. It is never
// available and every call is a silent no-op.
package noop

import (
	"context"

	"github.com/kbukum/voicekit/voice"
)

// Name is the provider name.
const Name = "noop"

// Provider does nothing.
type Provider struct{}

var _ voice.TextToSpeechProvider = Provider{}

// New returns the no-op provider.
func New() Provider { return Provider{} }

// Name returns "noop".
func (Provider) Name() string { return Name }

// IsAvailable always reports false, so selection only lands here when
// nothing else can speak.
func (Provider) IsAvailable(context.Context) bool { return false }

// Speak says nothing and reports OutcomeSkipped.
func (Provider) Speak(context.Context, string) voice.Outcome { return voice.OutcomeSkipped }

// StopSpeaking is a no-op.
func (Provider) StopSpeaking(context.Context) {}
