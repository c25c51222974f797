// Package streamed adapts a synthesizer that produces an audio stream which
// is then handed to a separate player.
//
// Completion is the successful handoff of the stream to the player, not the
// end of playback, so Speak returns voice.OutcomeSubmitted as soon as both
// processes run.
package streamed

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/process"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/voice"
)

// Synthesizer renders text to an audio stream read from the process Stdout.
type Synthesizer interface {
	Voices(ctx context.Context) ([]voice.VoiceHandle, error)
	Synthesize(ctx context.Context, voiceID, text string) (process.Process, error)
}

// Player plays an audio stream.
type Player interface {
	Probe(ctx context.Context) error
	Play(ctx context.Context, audio io.Reader) (process.Process, error)
}

// Options configures a Provider.
type Options struct {
	// Name defaults to "stream".
	Name string
	// Locale defaults to voice.DefaultLocale.
	Locale string
	Logger *logger.Logger
}

type playback struct {
	synth  process.Process
	player process.Process
}

// Provider is a voice.TextToSpeechProvider piping a Synthesizer into a Player.
type Provider struct {
	synth  Synthesizer
	player Player
	opts   Options
	log    *logger.Logger
	state  voice.StateMachine

	// engineMu serializes stream setup and teardown.
	engineMu sync.Mutex

	mu      sync.Mutex
	voices  []voice.VoiceHandle
	current *playback
}

var (
	_ voice.TextToSpeechProvider = (*Provider)(nil)
	_ provider.Initializable     = (*Provider)(nil)
	_ provider.Closeable         = (*Provider)(nil)
)

// New creates a provider. Init must succeed before it reports available.
func New(synth Synthesizer, player Player, opts Options) *Provider {
	if opts.Name == "" {
		opts.Name = "stream"
	}
	if opts.Locale == "" {
		opts.Locale = voice.DefaultLocale
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("tts.streamed")
	}
	return &Provider{synth: synth, player: player, opts: opts, log: opts.Logger}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.opts.Name }

// IsAvailable reports whether Init completed successfully.
func (p *Provider) IsAvailable(context.Context) bool { return p.state.Ready() }

// State returns the initialization state.
func (p *Provider) State() voice.InitState { return p.state.State() }

// Init probes the player and loads the synthesizer voices.
func (p *Provider) Init(ctx context.Context) error {
	if !p.state.Begin() {
		if p.state.Closed() {
			return errors.Closed(p.opts.Name)
		}
		return nil
	}

	voices, err := p.init(ctx)
	if err != nil {
		appErr := errors.InitializationFailed(p.opts.Name, err)
		p.state.Fail(appErr)
		p.log.Error("engine initialization failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "init"), err))
		return appErr
	}

	p.mu.Lock()
	p.voices = voices
	p.mu.Unlock()
	p.state.Succeed()
	p.log.Info("engine ready", logger.Fields(logger.FieldProvider, p.opts.Name, "voices", len(voices)))
	return nil
}

func (p *Provider) init(ctx context.Context) ([]voice.VoiceHandle, error) {
	if err := p.player.Probe(ctx); err != nil {
		return nil, err
	}
	return p.synth.Voices(ctx)
}

// Speak stops the current stream, then starts synthesis and hands the
// stream to the player.
func (p *Provider) Speak(ctx context.Context, text string) voice.Outcome {
	if !p.state.Ready() {
		p.log.Warn("speak skipped: provider not ready", logger.Fields(
			logger.FieldProvider, p.opts.Name,
			"state", p.state.State().String(),
		))
		return voice.OutcomeSkipped
	}
	if strings.TrimSpace(text) == "" {
		return voice.OutcomeSkipped
	}

	p.engineMu.Lock()
	defer p.engineMu.Unlock()
	p.stopLocked(ctx)

	p.mu.Lock()
	sel := voice.ResolveVoice(p.opts.Locale, p.voices)
	p.mu.Unlock()
	if sel.Fallback() {
		p.log.Warn("no installed voice for locale, using engine default", logger.Fields(
			logger.FieldProvider, p.opts.Name,
			logger.FieldLocale, sel.RequestedLocale,
		))
	}

	synth, err := p.synth.Synthesize(ctx, sel.VoiceID(), text)
	if err != nil {
		p.log.Error("synthesis failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "speak"), err))
		return voice.OutcomeFailed
	}
	player, err := p.player.Play(ctx, synth.Stdout())
	if err != nil {
		_ = synth.Stop(context.WithoutCancel(ctx))
		p.log.Error("stream handoff failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "speak"), err))
		return voice.OutcomeFailed
	}

	pb := &playback{synth: synth, player: player}
	p.mu.Lock()
	p.current = pb
	p.mu.Unlock()
	go p.watch(pb)

	return voice.OutcomeSubmitted
}

// watch clears pb once the player exits and logs playback errors that were
// not caused by StopSpeaking.
func (p *Provider) watch(pb *playback) {
	err := pb.player.Wait()
	_ = pb.synth.Wait()

	p.mu.Lock()
	stopped := p.current != pb
	if !stopped {
		p.current = nil
	}
	p.mu.Unlock()

	if err != nil && !stopped {
		p.log.Warn("playback ended with an error", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "play"), err))
	}
}

// StopSpeaking stops synthesis and playback. It is a no-op when idle. A
// stream being set up by Speak is stopped once its handoff completes.
func (p *Provider) StopSpeaking(ctx context.Context) {
	p.engineMu.Lock()
	defer p.engineMu.Unlock()
	p.stopLocked(ctx)
}

func (p *Provider) stopLocked(ctx context.Context) {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()
	if pb == nil {
		return
	}

	for _, proc := range []process.Process{pb.player, pb.synth} {
		if err := proc.Stop(ctx); err != nil {
			p.log.Warn("stopping stream failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "stop"), err))
		}
	}
}

// Close stops playback and makes the provider unavailable.
func (p *Provider) Close(ctx context.Context) error {
	if !p.state.Close() {
		return nil
	}
	p.StopSpeaking(ctx)
	return nil
}
