package stt

import (
	"context"
	"sync"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/voice"
)

// DefaultName is the name a Coordinator reports for itself.
const DefaultName = "auto"

// Listen metric statuses.
const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// Options configures a Coordinator.
type Options struct {
	// Name defaults to DefaultName.
	Name string
	// Metrics defaults to observability.NopVoiceMetrics.
	Metrics *observability.VoiceMetrics
	Logger  *logger.Logger
}

// Coordinator is a voice.SpeechRecognitionProvider that starts the first
// available recognizer and routes Stop to it.
type Coordinator struct {
	fallback *provider.Fallback[voice.SpeechRecognitionProvider]
	opts     Options
	log      *logger.Logger

	mu     sync.Mutex
	active voice.SpeechRecognitionProvider
}

var (
	_ voice.SpeechRecognitionProvider = (*Coordinator)(nil)
	_ provider.Closeable              = (*Coordinator)(nil)
)

// NewCoordinator creates a coordinator over fb.
func NewCoordinator(fb *provider.Fallback[voice.SpeechRecognitionProvider], opts Options) *Coordinator {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NopVoiceMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("stt")
	}
	return &Coordinator{fallback: fb, opts: opts, log: opts.Logger}
}

// Name returns the coordinator name.
func (c *Coordinator) Name() string { return c.opts.Name }

// IsAvailable reports whether any recognizer is available.
func (c *Coordinator) IsAvailable(ctx context.Context) bool {
	_, ok := c.fallback.Select(ctx)
	return ok
}

// Active returns the name of the recognizer the next Start would use.
func (c *Coordinator) Active(ctx context.Context) string {
	p, _ := c.fallback.Select(ctx)
	return p.Name()
}

// Describe probes every recognizer, terminus last.
func (c *Coordinator) Describe(ctx context.Context) []voice.Descriptor {
	var out []voice.Descriptor
	for _, a := range c.fallback.Describe(ctx) {
		out = append(out, voice.Descriptor{Name: a.Name, Kind: voice.KindSTT, IsAvailable: a.Available})
	}
	return out
}

// Candidates returns the recognizers in priority order, terminus last.
func (c *Coordinator) Candidates() []voice.SpeechRecognitionProvider {
	return c.fallback.Candidates()
}

// Initialize initializes every recognizer against bridge and reports
// whether at least one succeeded.
func (c *Coordinator) Initialize(ctx context.Context, bridge voice.HostBridge, sink voice.CallbackSink) bool {
	ctx, span := observability.StartSpan(ctx, observability.SpanInitialize)
	defer span.End()

	var ready []string
	for _, p := range c.fallback.Candidates() {
		status := statusFailed
		if p.Initialize(ctx, bridge, sink) {
			status = statusOK
			ready = append(ready, p.Name())
		}
		c.opts.Metrics.RecordListen(ctx, p.Name(), "initialize", status)
	}

	observability.SetSpanAttribute(ctx, observability.AttrReady, ready)
	if len(ready) == 0 {
		c.log.Warn("no speech recognizer initialized")
		return false
	}
	c.log.Info("speech recognizers initialized", logger.Fields("ready", ready))
	return true
}

// Start begins listening on the first available recognizer. A session on
// a different recognizer is stopped first. With nothing available it
// returns an Unavailable error instead of pretending to listen.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanListenStart)
	defer span.End()

	p, live := c.fallback.Select(ctx)
	if !live {
		c.opts.Metrics.RecordFallback(ctx, string(voice.KindSTT), p.Name())
		err := errors.Unavailable(c.opts.Name)
		observability.SetSpanError(ctx, err)
		c.log.Warn("no speech recognizer available", logger.ProviderFields(c.opts.Name, "start"))
		return err
	}
	observability.SetSpanAttribute(ctx, observability.AttrProvider, p.Name())

	c.mu.Lock()
	prev := c.active
	c.active = p
	c.mu.Unlock()
	if prev != nil && prev != p {
		if err := prev.Stop(ctx); err != nil {
			c.log.Warn("stopping previous recognizer failed", logger.MergeWithError(logger.ProviderFields(prev.Name(), "stop"), err))
		}
	}

	err := p.Start(ctx)
	c.record(ctx, p, "start", err)
	return err
}

// Stop ends the session on the recognizer that was started last. It is a
// no-op before the first Start.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	p := c.active
	c.mu.Unlock()
	if p == nil {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanListenStop)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrProvider, p.Name())

	err := p.Stop(ctx)
	c.record(ctx, p, "stop", err)
	return err
}

func (c *Coordinator) record(ctx context.Context, p voice.SpeechRecognitionProvider, op string, err error) {
	status := statusOK
	if err != nil {
		status = statusFailed
		observability.SetSpanError(ctx, err)
	}
	c.opts.Metrics.RecordListen(ctx, p.Name(), op, status)
}

// Close closes every recognizer that holds resources.
func (c *Coordinator) Close(ctx context.Context) error {
	return provider.CloseAll(ctx, c.fallback.Candidates()...)
}
