package tts

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/voice"
)

// DefaultName is the name a Coordinator reports for itself.
const DefaultName = "auto"

// Options configures a Coordinator.
type Options struct {
	// Name defaults to DefaultName.
	Name string
	// Metrics defaults to observability.NopVoiceMetrics.
	Metrics *observability.VoiceMetrics
	Logger  *logger.Logger
}

// Coordinator is a voice.TextToSpeechProvider that forwards every call to
// the first available candidate.
type Coordinator struct {
	fallback *provider.Fallback[voice.TextToSpeechProvider]
	opts     Options
	log      *logger.Logger

	mu   sync.Mutex
	last voice.TextToSpeechProvider
}

var (
	_ voice.TextToSpeechProvider = (*Coordinator)(nil)
	_ provider.Closeable         = (*Coordinator)(nil)
)

// NewCoordinator creates a coordinator over fb.
func NewCoordinator(fb *provider.Fallback[voice.TextToSpeechProvider], opts Options) *Coordinator {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NopVoiceMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("tts")
	}
	return &Coordinator{fallback: fb, opts: opts, log: opts.Logger}
}

// Name returns the coordinator name, not the name of the active backend.
func (c *Coordinator) Name() string { return c.opts.Name }

// IsAvailable reports whether any candidate is available.
func (c *Coordinator) IsAvailable(ctx context.Context) bool {
	_, ok := c.fallback.Select(ctx)
	return ok
}

// Active returns the name of the backend that would serve the next call.
func (c *Coordinator) Active(ctx context.Context) string {
	p, _ := c.fallback.Select(ctx)
	return p.Name()
}

// Describe probes every backend, terminus last.
func (c *Coordinator) Describe(ctx context.Context) []voice.Descriptor {
	var out []voice.Descriptor
	for _, a := range c.fallback.Describe(ctx) {
		out = append(out, voice.Descriptor{Name: a.Name, Kind: voice.KindTTS, IsAvailable: a.Available})
	}
	return out
}

// Candidates returns the backends in priority order, terminus last.
func (c *Coordinator) Candidates() []voice.TextToSpeechProvider {
	return c.fallback.Candidates()
}

// Speak plays text on the first available backend. When a different
// backend spoke last, it is stopped first so at most one utterance plays.
func (c *Coordinator) Speak(ctx context.Context, text string) voice.Outcome {
	ctx, span := observability.StartSpan(ctx, observability.SpanSpeak)
	defer span.End()
	start := time.Now()

	p, live := c.fallback.Select(ctx)
	if !live {
		c.opts.Metrics.RecordFallback(ctx, string(voice.KindTTS), p.Name())
		c.log.Debug("no text-to-speech backend available", logger.Fields(logger.FieldProvider, p.Name()))
	}

	c.mu.Lock()
	prev := c.last
	c.last = p
	c.mu.Unlock()
	if prev != nil && prev != p {
		prev.StopSpeaking(ctx)
	}

	out := p.Speak(ctx, text)

	observability.SetSpanAttribute(ctx, observability.AttrProvider, p.Name())
	observability.SetSpanAttribute(ctx, observability.AttrOutcome, out)
	c.opts.Metrics.RecordSpeak(ctx, p.Name(), out.String(), time.Since(start))
	return out
}

// StopSpeaking stops the backend that spoke last. It is a no-op before the
// first Speak.
func (c *Coordinator) StopSpeaking(ctx context.Context) {
	c.mu.Lock()
	p := c.last
	c.mu.Unlock()
	if p == nil {
		return
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanStopSpeak)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrProvider, p.Name())
	p.StopSpeaking(ctx)
}

// Close closes every backend that holds resources.
func (c *Coordinator) Close(ctx context.Context) error {
	return provider.CloseAll(ctx, c.fallback.Candidates()...)
}
