// Package threadbound adapts a speech engine that must only be called from
// one designated thread. Every engine call is marshaled onto an
// affinity.Executor owned by the provider, and the engine's completion
// callback is bridged back to the waiting Speak through a completion token.
package threadbound

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/voicekit/affinity"
	"github.com/kbukum/voicekit/completion"
	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/voice"
)

// Engine is a callback-driven synthesizer with thread affinity.
type Engine interface {
	Open(ctx context.Context) error
	Voices(ctx context.Context) ([]voice.VoiceHandle, error)
	// Speak starts an utterance and calls onDone exactly once when it ends.
	Speak(ctx context.Context, voiceID, text string, onDone func(error)) error
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options configures a Provider.
type Options struct {
	// Name defaults to "threadbound".
	Name string
	// Locale defaults to voice.DefaultLocale.
	Locale string
	// CompletionTimeout bounds the wait for the engine callback. Defaults to
	// voice.DefaultCompletionTimeout.
	CompletionTimeout time.Duration
	Logger            *logger.Logger
}

type utterance struct {
	tok *completion.Token[struct{}]
	// started is only touched on the designated thread.
	started bool
}

// Provider is a voice.TextToSpeechProvider over a thread-bound Engine.
type Provider struct {
	engine Engine
	exec   *affinity.Executor
	opts   Options
	log    *logger.Logger
	state  voice.StateMachine

	mu      sync.Mutex
	voices  []voice.VoiceHandle
	current *utterance
}

var (
	_ voice.TextToSpeechProvider = (*Provider)(nil)
	_ provider.Initializable     = (*Provider)(nil)
	_ provider.Closeable         = (*Provider)(nil)
)

// New creates a provider and starts its designated thread. Init must succeed
// before the provider reports available.
func New(engine Engine, opts Options) *Provider {
	if opts.Name == "" {
		opts.Name = "threadbound"
	}
	if opts.Locale == "" {
		opts.Locale = voice.DefaultLocale
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = voice.DefaultCompletionTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("tts.threadbound")
	}
	return &Provider{
		engine: engine,
		exec:   affinity.New(opts.Name),
		opts:   opts,
		log:    opts.Logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.opts.Name }

// IsAvailable reports whether Init completed successfully.
func (p *Provider) IsAvailable(context.Context) bool { return p.state.Ready() }

// State returns the initialization state.
func (p *Provider) State() voice.InitState { return p.state.State() }

// Init opens the engine on the designated thread and loads the installed
// voices. It may be called again after a failure.
func (p *Provider) Init(ctx context.Context) error {
	if !p.state.Begin() {
		if p.state.Closed() {
			return errors.Closed(p.opts.Name)
		}
		return nil
	}

	var voices []voice.VoiceHandle
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		if err := p.engine.Open(ctx); err != nil {
			return err
		}
		var err error
		voices, err = p.engine.Voices(ctx)
		if err != nil {
			// The engine default voice still works.
			p.log.Warn("listing voices failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "init"), err))
		}
		return nil
	})
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
	p.log.Info("engine ready", logger.Fields(
		logger.FieldProvider, p.opts.Name,
		"voices", len(voices),
	))
	return nil
}

// Speak stops the current utterance, then plays text and waits for the
// engine callback or the completion timeout.
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

	p.interrupt(ctx)

	p.mu.Lock()
	sel := voice.ResolveVoice(p.opts.Locale, p.voices)
	p.mu.Unlock()
	if sel.Fallback() {
		p.log.Warn("no installed voice for locale, using engine default", logger.Fields(
			logger.FieldProvider, p.opts.Name,
			logger.FieldLocale, sel.RequestedLocale,
		))
	}

	u := &utterance{tok: completion.New[struct{}]()}
	p.mu.Lock()
	p.current = u
	p.mu.Unlock()

	err := p.exec.Do(ctx, func(ctx context.Context) error {
		// Interrupted or abandoned while queued behind other work.
		if u.tok.Fulfilled() {
			return nil
		}
		u.started = true
		return p.engine.Speak(ctx, sel.VoiceID(), text, func(err error) {
			p.finished(u, err)
		})
	})
	if err != nil {
		u.tok.Reject(err)
		p.clear(u)
		if ctx.Err() != nil {
			p.abandon(context.WithoutCancel(ctx), u)
		}
		p.log.Error("speak failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "speak"), err))
		return voice.OutcomeFailed
	}

	start := time.Now()
	_, err = u.tok.Await(ctx, p.opts.CompletionTimeout)
	outcome := voice.OutcomeOf(err)
	switch outcome {
	case voice.OutcomeTimedOut:
		p.log.Info("completion timeout elapsed, playback may continue", logger.MergeWithDuration(
			logger.ProviderFields(p.opts.Name, "speak"), time.Since(start)))
	case voice.OutcomeInterrupted:
		if stderrors.Is(err, completion.ErrCanceled) {
			p.stop(context.WithoutCancel(ctx), u)
		}
	case voice.OutcomeFailed:
		p.log.Error("engine reported an error", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "speak"),
			errors.EngineError(p.opts.Name, "speak", err)))
	}
	return outcome
}

// finished runs when the engine signals the end of u. Fulfillment is posted
// to the designated thread, the context native callbacks arrive on.
func (p *Provider) finished(u *utterance, err error) {
	fulfill := func() {
		if err != nil {
			u.tok.Reject(err)
		} else {
			u.tok.Resolve(struct{}{})
		}
		p.clear(u)
	}
	if !p.exec.Post(fulfill) {
		fulfill()
	}
}

// abandon stops u if its task reaches the engine after Speak gave up on it.
// The stop is queued behind the task on the designated thread.
func (p *Provider) abandon(ctx context.Context, u *utterance) {
	p.exec.Post(func() {
		if !u.started {
			return
		}
		if err := p.engine.Stop(ctx); err != nil {
			p.log.Warn("stopping abandoned utterance failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "stop"), err))
		}
	})
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
	p.interrupt(ctx)
}

func (p *Provider) interrupt(ctx context.Context) {
	p.stop(ctx, nil)
}

// stop interrupts the current utterance, or only u when u is not nil.
func (p *Provider) stop(ctx context.Context, only *utterance) {
	p.mu.Lock()
	u := p.current
	if u == nil || (only != nil && u != only) {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	u.tok.Reject(voice.ErrInterrupted)
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.engine.Stop(ctx)
	})
	if err != nil {
		p.log.Warn("stopping utterance failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "stop"), err))
	}
}

// Close stops playback, closes the engine and releases the designated
// thread. The provider is unavailable afterwards.
func (p *Provider) Close(ctx context.Context) error {
	if !p.state.Close() {
		return nil
	}
	p.interrupt(ctx)
	err := p.exec.Do(ctx, func(ctx context.Context) error {
		return p.engine.Close(ctx)
	})
	p.exec.Close()
	return err
}
