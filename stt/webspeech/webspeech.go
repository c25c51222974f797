// Package webspeech recognizes speech through the recognition API of a
// connected page, driven by the functions of the injected speech script.
package webspeech

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/hostbridge"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/voice"
)

// Script functions. The names are part of the host compatibility surface.
const (
	FnInit  = "initSpeechRecognition"
	FnStart = "startSpeechRecognition"
	FnStop  = "stopSpeechRecognition"
)

// Options configures a Provider.
type Options struct {
	// Name defaults to "webspeech".
	Name string
	// Locale is the recognition language. Defaults to voice.DefaultLocale.
	Locale string
	// Injector loads the speech script. Defaults to hostbridge.NewInjector
	// with a short settle delay.
	Injector *hostbridge.Injector
	Logger   *logger.Logger
}

// Provider is a voice.SpeechRecognitionProvider backed by a host page.
type Provider struct {
	opts  Options
	log   *logger.Logger
	inj   *hostbridge.Injector
	group singleflight.Group

	mu        sync.Mutex
	bridge    voice.HostBridge
	sink      voice.CallbackSink
	session   string
	bound     bool
	listening bool
	// generation numbers listening sessions; the page echoes it when a
	// session ends.
	generation int64
}

var _ voice.SpeechRecognitionProvider = (*Provider)(nil)

// New creates an unbound provider. Initialize binds it to a bridge.
func New(opts Options) *Provider {
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
		opts.Logger = logger.Get("stt.webspeech")
	}
	return &Provider{opts: opts, log: opts.Logger, inj: opts.Injector}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.opts.Name }

// IsAvailable reports whether the provider is bound to the current page and
// that page supports recognition.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	p.mu.Lock()
	bridge, bound, session := p.bridge, p.bound, p.session
	p.mu.Unlock()
	if !bound || sessionOf(bridge) != session {
		return false
	}
	ok, err := bridge.EvalBool(ctx, hostbridge.RecognitionProbe)
	return err == nil && ok
}

// Initialize loads the speech script and binds sink as the target of
// transcript events. Concurrent calls for the same page and sink share one
// attempt, and a call for an
// already bound page and sink does nothing. Failures are logged and
// reported as false.
func (p *Provider) Initialize(ctx context.Context, bridge voice.HostBridge, sink voice.CallbackSink) bool {
	var err error
	if key, ok := flightKey(bridge, sink); ok {
		_, err, _ = p.group.Do(key, func() (any, error) {
			return nil, p.initialize(ctx, bridge, sink)
		})
	} else {
		err = p.initialize(ctx, bridge, sink)
	}
	if err != nil {
		p.log.Error("recognition initialization failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "initialize"), err))
		return false
	}
	return true
}

func (p *Provider) initialize(ctx context.Context, bridge voice.HostBridge, sink voice.CallbackSink) error {
	session := sessionOf(bridge)

	p.mu.Lock()
	if p.bound && p.bridge == bridge && sameSink(p.sink, sink) && p.session == session {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	ok, err := bridge.EvalBool(ctx, hostbridge.RecognitionProbe)
	if err != nil {
		return errors.HostBridgeError("probe", err)
	}
	if !ok {
		return errors.Unavailable(p.opts.Name)
	}
	if err := p.inj.Ensure(ctx, bridge); err != nil {
		return err
	}
	target := voice.CallbackTarget(bridge, &trackingSink{CallbackSink: sink, p: p})
	if err := bridge.Invoke(ctx, FnInit, target, p.opts.Locale); err != nil {
		return errors.HostBridgeError(FnInit, err)
	}

	p.mu.Lock()
	p.bridge = bridge
	p.sink = sink
	p.session = session
	p.bound = true
	p.listening = false
	p.mu.Unlock()
	p.log.Info("recognition ready", logger.Fields(
		logger.FieldProvider, p.opts.Name,
		logger.FieldLocale, p.opts.Locale,
	))
	return nil
}

// Start begins listening, restarting a session already in progress. When
// the page was replaced since Initialize, the provider is bound again
// first. Failures are logged and returned.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	bridge, sink, bound, session := p.bridge, p.sink, p.bound, p.session
	p.mu.Unlock()
	if !bound {
		return errors.NotInitialized(p.opts.Name)
	}
	if sessionOf(bridge) != session {
		p.log.Info("page replaced, binding recognition again", logger.ProviderFields(p.opts.Name, "start"))
		if !p.Initialize(ctx, bridge, sink) {
			return errors.RecognitionFailed(p.opts.Name, "start", errors.NotInitialized(p.opts.Name))
		}
	}

	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	if err := bridge.Invoke(ctx, FnStart, gen); err != nil {
		p.log.Error("starting recognition failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "start"), err))
		return errors.RecognitionFailed(p.opts.Name, "start", err)
	}
	p.mu.Lock()
	if p.generation == gen {
		p.listening = true
	}
	p.mu.Unlock()
	return nil
}

// Stop ends the session. Stopping while idle is a no-op.
func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	bridge, listening := p.bridge, p.listening
	p.mu.Unlock()
	if !listening {
		return nil
	}

	if err := bridge.Invoke(ctx, FnStop); err != nil {
		p.log.Error("stopping recognition failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "stop"), err))
		return errors.RecognitionFailed(p.opts.Name, "stop", err)
	}
	p.setListening(false)
	return nil
}

// Listening reports whether a session is in progress.
func (p *Provider) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listening
}

func (p *Provider) setListening(v bool) {
	p.mu.Lock()
	p.listening = v
	p.mu.Unlock()
}

// trackingSink notices sessions the page ends on its own.
type trackingSink struct {
	voice.CallbackSink
	p *Provider
}

var _ voice.SessionSink = (*trackingSink)(nil)

// OnSpeechEnd handles hosts that do not report which session ended.
func (s *trackingSink) OnSpeechEnd() {
	s.p.setListening(false)
	s.CallbackSink.OnSpeechEnd()
}

// OnSessionEnd drops the end of a session a restart already replaced.
func (s *trackingSink) OnSessionEnd(session int64) {
	if !s.p.endSession(session) {
		s.p.log.Debug("ignoring end of a replaced session", logger.Fields(
			logger.FieldProvider, s.p.opts.Name,
			"session", session,
		))
		return
	}
	s.CallbackSink.OnSpeechEnd()
}

func (p *Provider) endSession(session int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if session != p.generation {
		return false
	}
	p.listening = false
	return true
}

func sessionOf(bridge voice.HostBridge) string {
	if s, ok := bridge.(hostbridge.Sessioner); ok {
		return s.Session()
	}
	return ""
}

// flightKey groups concurrent Initialize calls for the same page session
// and sink. Sinks without pointer identity are never grouped.
func flightKey(bridge voice.HostBridge, sink voice.CallbackSink) (string, bool) {
	v := reflect.ValueOf(sink)
	if v.Kind() != reflect.Pointer {
		return "", false
	}
	return fmt.Sprintf("%s|%T@%x", hostbridge.SessionKey(bridge), sink, v.Pointer()), true
}

func sameSink(a, b voice.CallbackSink) bool {
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || t == nil || !t.Comparable() {
		return false
	}
	return a == b
}
