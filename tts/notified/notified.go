// Package notified adapts a speech engine that reports the end of an
// utterance only through a process-wide notification center.
//
// Speak subscribes to voice.SynthesizerDidFinish immediately before issuing
// the speak command, matches notifications by utterance id, and removes the
// subscription exactly once when the call ends.
package notified

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voicekit/completion"
	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/notify"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/voice"
)

// Engine starts utterances and posts voice.SynthesizerDidFinish with the
// utterance id as the notification object when each one ends.
type Engine interface {
	Voices(ctx context.Context) ([]voice.VoiceHandle, error)
	StartSpeaking(ctx context.Context, utteranceID, voiceID, text string) error
	StopSpeaking(ctx context.Context) error
}

// Options configures a Provider.
type Options struct {
	// Name defaults to "notified".
	Name string
	// Locale defaults to voice.DefaultLocale.
	Locale string
	// CompletionTimeout defaults to voice.DefaultCompletionTimeout.
	CompletionTimeout time.Duration
	// Center defaults to notify.Default().
	Center *notify.Center
	Logger *logger.Logger
}

type utterance struct {
	id  string
	tok *completion.Token[struct{}]
}

// Provider is a voice.TextToSpeechProvider over a notification-driven Engine.
type Provider struct {
	engine Engine
	opts   Options
	log    *logger.Logger
	state  voice.StateMachine

	// engineMu serializes engine start and stop calls, so a stop never
	// lands before the engine has registered the utterance it targets.
	engineMu sync.Mutex

	mu      sync.Mutex
	voices  []voice.VoiceHandle
	current *utterance
}

var (
	_ voice.TextToSpeechProvider = (*Provider)(nil)
	_ provider.Initializable     = (*Provider)(nil)
	_ provider.Closeable         = (*Provider)(nil)
)

// New creates a provider. Init must succeed before it reports available.
func New(engine Engine, opts Options) *Provider {
	if opts.Name == "" {
		opts.Name = "notified"
	}
	if opts.Locale == "" {
		opts.Locale = voice.DefaultLocale
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = voice.DefaultCompletionTimeout
	}
	if opts.Center == nil {
		opts.Center = notify.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("tts.notified")
	}
	return &Provider{engine: engine, opts: opts, log: opts.Logger}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.opts.Name }

// IsAvailable reports whether Init completed successfully.
func (p *Provider) IsAvailable(context.Context) bool { return p.state.Ready() }

// State returns the initialization state.
func (p *Provider) State() voice.InitState { return p.state.State() }

// Init loads the installed voices, which also proves the engine runs.
func (p *Provider) Init(ctx context.Context) error {
	if !p.state.Begin() {
		if p.state.Closed() {
			return errors.Closed(p.opts.Name)
		}
		return nil
	}

	voices, err := p.engine.Voices(ctx)
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

// Speak stops the current utterance, plays text and waits for its finish
// notification or the completion timeout.
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
	p.stopLocked(ctx, nil)

	p.mu.Lock()
	sel := voice.ResolveVoice(p.opts.Locale, p.voices)
	p.mu.Unlock()
	if sel.Fallback() {
		p.log.Warn("no installed voice for locale, using engine default", logger.Fields(
			logger.FieldProvider, p.opts.Name,
			logger.FieldLocale, sel.RequestedLocale,
		))
	}

	u := &utterance{id: uuid.NewString(), tok: completion.New[struct{}]()}
	unsubscribe := p.opts.Center.AddObserver(voice.SynthesizerDidFinish, func(n notify.Notification) {
		if id, _ := n.Object.(string); id != u.id {
			return
		}
		p.finished(u, n.Info)
	})
	defer unsubscribe()

	p.mu.Lock()
	p.current = u
	p.mu.Unlock()

	fields := logger.Fields(logger.FieldProvider, p.opts.Name, logger.FieldUtteranceID, u.id)
	if err := p.engine.StartSpeaking(ctx, u.id, sel.VoiceID(), text); err != nil {
		p.engineMu.Unlock()
		p.clear(u)
		p.log.Error("speak failed", logger.MergeWithError(fields, err))
		return voice.OutcomeFailed
	}
	p.engineMu.Unlock()

	_, err := u.tok.Await(ctx, p.opts.CompletionTimeout)
	outcome := voice.OutcomeOf(err)
	switch outcome {
	case voice.OutcomeTimedOut:
		p.log.Info("completion timeout elapsed, playback may continue", fields)
	case voice.OutcomeInterrupted:
		if stderrors.Is(err, completion.ErrCanceled) {
			p.stop(context.WithoutCancel(ctx), u)
		}
	case voice.OutcomeFailed:
		p.log.Error("engine reported an error", logger.MergeWithError(fields, err))
	}
	return outcome
}

func (p *Provider) finished(u *utterance, info map[string]any) {
	defer p.clear(u)
	if msg, ok := info[voice.InfoError].(string); ok && msg != "" {
		u.tok.Reject(errors.EngineError(p.opts.Name, "speak", stderrors.New(msg)))
		return
	}
	if done, _ := info[voice.InfoFinished].(bool); !done {
		u.tok.Reject(voice.ErrInterrupted)
		return
	}
	u.tok.Resolve(struct{}{})
}

func (p *Provider) clear(u *utterance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == u {
		p.current = nil
	}
}

// StopSpeaking stops the current utterance. It is a no-op when idle.
func (p *Provider) StopSpeaking(ctx context.Context) {
	p.stop(ctx, nil)
}

// stop waits for an in-flight engine start, so it reaches the utterance
// that start registers.
func (p *Provider) stop(ctx context.Context, only *utterance) {
	p.engineMu.Lock()
	defer p.engineMu.Unlock()
	p.stopLocked(ctx, only)
}

func (p *Provider) stopLocked(ctx context.Context, only *utterance) {
	p.mu.Lock()
	u := p.current
	if u == nil || (only != nil && u != only) {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	u.tok.Reject(voice.ErrInterrupted)
	if err := p.engine.StopSpeaking(ctx); err != nil {
		p.log.Warn("stopping utterance failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "stop"), err))
	}
}

// Close stops playback and makes the provider unavailable.
func (p *Provider) Close(ctx context.Context) error {
	if !p.state.Close() {
		return nil
	}
	p.stop(ctx, nil)
	return nil
}
