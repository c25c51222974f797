// Package webspeech speaks through the speech synthesis API of a connected
// page. The page gives no completion signal, so Speak returns
// voice.OutcomeSubmitted once the text was handed over.
package webspeech

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/hostbridge"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/voice"
)

// Page functions defined by the speech script.
const (
	fnSpeak  = "speakText"
	fnCancel = "cancelSpeech"
)

// Options configures a Provider.
type Options struct {
	// Name defaults to "webspeech".
	Name string
	// Locale defaults to voice.DefaultLocale.
	Locale string
	// Injector loads the speech script. Defaults to hostbridge.NewInjector
	// with a short settle delay.
	Injector *hostbridge.Injector
	Logger   *logger.Logger
}

// Provider is a voice.TextToSpeechProvider backed by a host page.
type Provider struct {
	bridge voice.HostBridge
	inj    *hostbridge.Injector
	opts   Options
	log    *logger.Logger
	state  voice.StateMachine

	// pending is set by Speak and cleared by StopSpeaking, so cancel is only
	// sent to the page when something may be playing.
	pending atomic.Bool
}

var (
	_ voice.TextToSpeechProvider = (*Provider)(nil)
	_ provider.Initializable     = (*Provider)(nil)
	_ provider.Closeable         = (*Provider)(nil)
)

// New creates a provider speaking through bridge.
func New(bridge voice.HostBridge, opts Options) *Provider {
	if opts.Name == "" {
		opts.Name = "webspeech"
	}
	if opts.Locale == "" {
		opts.Locale = voice.DefaultLocale
	}
	if opts.Injector == nil {
		opts.Injector = hostbridge.NewInjector(100 * time.Millisecond)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("tts.webspeech")
	}
	return &Provider{bridge: bridge, inj: opts.Injector, opts: opts, log: opts.Logger}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.opts.Name }

// State returns the initialization state.
func (p *Provider) State() voice.InitState { return p.state.State() }

// IsAvailable reports whether Init succeeded and the connected page still
// exposes speech synthesis.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if !p.state.Ready() {
		return false
	}
	ok, err := p.bridge.EvalBool(ctx, hostbridge.SynthesisProbe)
	return err == nil && ok
}

// Init probes the page for speech synthesis and loads the speech script.
// A failed Init may be retried, e.g. once a page connects.
func (p *Provider) Init(ctx context.Context) error {
	if !p.state.Begin() {
		if p.state.Closed() {
			return errors.Closed(p.opts.Name)
		}
		return nil
	}

	if err := p.init(ctx); err != nil {
		appErr := errors.InitializationFailed(p.opts.Name, err)
		p.state.Fail(appErr)
		p.log.Error("engine initialization failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "init"), err))
		return appErr
	}
	p.state.Succeed()
	p.log.Info("engine ready", logger.Fields(logger.FieldProvider, p.opts.Name))
	return nil
}

func (p *Provider) init(ctx context.Context) error {
	ok, err := p.bridge.EvalBool(ctx, hostbridge.SynthesisProbe)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("page has no speech synthesis")
	}
	return p.inj.Ensure(ctx, p.bridge)
}

// Speak hands text to the page. The page cancels any utterance in progress
// before speaking.
func (p *Provider) Speak(ctx context.Context, text string) voice.Outcome {
	if !p.IsAvailable(ctx) {
		p.log.Warn("speak skipped: provider not ready", logger.Fields(
			logger.FieldProvider, p.opts.Name,
			"state", p.state.State().String(),
		))
		return voice.OutcomeSkipped
	}
	if strings.TrimSpace(text) == "" {
		return voice.OutcomeSkipped
	}

	// The page may have been replaced since Init.
	if err := p.inj.Ensure(ctx, p.bridge); err != nil {
		p.log.Error("loading speech script failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "speak"), err))
		return voice.OutcomeFailed
	}

	if has, err := p.bridge.EvalBool(ctx, hasVoiceExpr(p.opts.Locale)); err == nil && !has {
		p.log.Warn("no installed voice for locale, using engine default", logger.Fields(
			logger.FieldProvider, p.opts.Name,
			logger.FieldLocale, p.opts.Locale,
		))
	}

	p.pending.Store(true)
	if err := p.bridge.Invoke(ctx, fnSpeak, text, p.opts.Locale); err != nil {
		if ctx.Err() != nil {
			return voice.OutcomeInterrupted
		}
		p.log.Error("speak failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "speak"), err))
		return voice.OutcomeFailed
	}
	return voice.OutcomeSubmitted
}

// StopSpeaking cancels page speech if anything was submitted since the last
// stop.
func (p *Provider) StopSpeaking(ctx context.Context) {
	if !p.pending.Swap(false) {
		return
	}
	if err := p.bridge.Invoke(ctx, fnCancel); err != nil {
		p.log.Warn("cancel speech failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "stop"), err))
	}
}

// Close cancels speech and makes the provider unavailable.
func (p *Provider) Close(ctx context.Context) error {
	if !p.state.Close() {
		return nil
	}
	p.StopSpeaking(ctx)
	return nil
}

func hasVoiceExpr(locale string) string {
	return "hasVoice(" + strconv.Quote(locale) + ")"
}
