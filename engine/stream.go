package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/voicekit/process"
	"github.com/kbukum/voicekit/voice"
)

// EspeakStream synthesizes WAV audio to a stream instead of playing it.
type EspeakStream struct {
	runner process.Runner
	binary string
}

// NewEspeakStream creates a streaming espeak-ng synthesizer.
func NewEspeakStream(runner process.Runner, binary string) *EspeakStream {
	return &EspeakStream{runner: runner, binary: binary}
}

// Voices lists installed voices.
func (e *EspeakStream) Voices(ctx context.Context) ([]voice.VoiceHandle, error) {
	res, err := e.runner.Run(ctx, process.Command{Binary: e.binary, Args: []string{"--voices"}})
	if err != nil {
		return nil, fmt.Errorf("espeak stream: list voices: %w", err)
	}
	return ParseEspeakVoices(res.Text()), nil
}

// Synthesize starts synthesis; the audio is read from the process Stdout.
func (e *EspeakStream) Synthesize(ctx context.Context, voiceID, text string) (process.Process, error) {
	args := []string{"--stdout", "--stdin"}
	if voiceID != "" {
		args = append(args, "-v", voiceID)
	}
	p, err := e.runner.Start(context.WithoutCancel(ctx), process.Command{
		Binary:        e.binary,
		Args:          args,
		Stdin:         strings.NewReader(text),
		CaptureStdout: true,
	})
	if err != nil {
		return nil, fmt.Errorf("espeak stream: synthesize: %w", err)
	}
	return p, nil
}

// Aplay plays a WAV stream with ALSA aplay.
type Aplay struct {
	runner process.Runner
	binary string
}

// NewAplay creates a player using binary (e.g. "aplay").
func NewAplay(runner process.Runner, binary string) *Aplay {
	return &Aplay{runner: runner, binary: binary}
}

// Probe verifies the player binary runs.
func (a *Aplay) Probe(ctx context.Context) error {
	return probe(ctx, a.runner, "aplay", a.binary, "--version")
}

// Play starts playing audio and returns once the player is running.
func (a *Aplay) Play(ctx context.Context, audio io.Reader) (process.Process, error) {
	p, err := a.runner.Start(context.WithoutCancel(ctx), process.Command{
		Binary: a.binary,
		Args:   []string{"-q", "-"},
		Stdin:  audio,
	})
	if err != nil {
		return nil, fmt.Errorf("aplay: play: %w", err)
	}
	return p, nil
}

// Arecord captures raw mono 16-bit little-endian PCM from the default device.
type Arecord struct {
	runner process.Runner
	binary string
}

// NewArecord creates a capture source using binary (e.g. "arecord").
func NewArecord(runner process.Runner, binary string) *Arecord {
	return &Arecord{runner: runner, binary: binary}
}

// Capture starts recording at sampleRate; PCM is read from the process Stdout.
// The capture runs until ctx is canceled or the process is stopped.
func (a *Arecord) Capture(ctx context.Context, sampleRate int) (process.Process, error) {
	p, err := a.runner.Start(ctx, process.Command{
		Binary:        a.binary,
		Args:          []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", fmt.Sprint(sampleRate)},
		CaptureStdout: true,
	})
	if err != nil {
		return nil, fmt.Errorf("arecord: capture: %w", err)
	}
	return p, nil
}
