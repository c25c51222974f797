package voice

import (
	"context"

	"github.com/kbukum/voicekit/provider"
)

// Kind identifies a voice capability.
type Kind string

const (
	// KindTTS is text-to-speech.
	KindTTS Kind = "tts"
	// KindSTT is speech-to-text.
	KindSTT Kind = "stt"
)

// Descriptor is a point-in-time view of a backend, produced on demand.
type Descriptor struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	IsAvailable bool   `json:"is_available"`
}

// Describe probes p and returns its descriptor.
func Describe(ctx context.Context, kind Kind, p provider.Provider) Descriptor {
	return Descriptor{
		Name:        p.Name(),
		Kind:        kind,
		IsAvailable: p.IsAvailable(ctx),
	}
}
