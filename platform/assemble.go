package platform

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/voicekit/config"
	"github.com/kbukum/voicekit/engine"
	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/hostbridge"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/notify"
	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/process"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/resilience"
	"github.com/kbukum/voicekit/stt"
	"github.com/kbukum/voicekit/stt/cloudspeech"
	sttnoop "github.com/kbukum/voicekit/stt/noop"
	sttweb "github.com/kbukum/voicekit/stt/webspeech"
	"github.com/kbukum/voicekit/tts"
	"github.com/kbukum/voicekit/tts/notified"
	ttsnoop "github.com/kbukum/voicekit/tts/noop"
	"github.com/kbukum/voicekit/tts/streamed"
	"github.com/kbukum/voicekit/tts/threadbound"
	ttsweb "github.com/kbukum/voicekit/tts/webspeech"
	"github.com/kbukum/voicekit/voice"
)

// Deps carries what backend factories need.
type Deps struct {
	Config config.VoiceConfig
	// Bridge is the script host. Required.
	Bridge voice.HostBridge
	// Sink receives transcripts from every recognizer.
	Sink voice.CallbackSink
	// Runner defaults to a process.Exec runner.
	Runner process.Runner
	// Center defaults to notify.Default().
	Center *notify.Center
	// Injector is shared by the script-hosted backends. Defaults to one
	// using Config.SettleDelay.
	Injector *hostbridge.Injector
	// Speech is the cloud recognition client. When nil and cloud
	// recognition is enabled, one is created from Config.
	Speech cloudspeech.Client
	// Retry bounds native engine initialization. Defaults to
	// resilience.DefaultRetryConfig.
	Retry   *resilience.RetryConfig
	Metrics *observability.VoiceMetrics
	Logger  *logger.Logger
}

// TTSBackends maps synthesis backend names to factories.
var TTSBackends = provider.NewRegistry[voice.TextToSpeechProvider, Deps]()

// STTBackends maps recognizer names to factories.
var STTBackends = provider.NewRegistry[voice.SpeechRecognitionProvider, Deps]()

func init() {
	TTSBackends.RegisterFactory(config.BackendEspeak, func(d Deps) (voice.TextToSpeechProvider, error) {
		return threadbound.New(engine.NewEspeak(d.Runner, d.Config.TTS.EspeakBinary), threadbound.Options{
			Name:              config.BackendEspeak,
			Locale:            d.Config.Locale,
			CompletionTimeout: d.Config.CompletionTimeout,
		}), nil
	})
	TTSBackends.RegisterFactory(config.BackendSay, func(d Deps) (voice.TextToSpeechProvider, error) {
		return notified.New(engine.NewSay(d.Runner, d.Config.TTS.SayBinary, d.Center), notified.Options{
			Name:              config.BackendSay,
			Locale:            d.Config.Locale,
			CompletionTimeout: d.Config.CompletionTimeout,
			Center:            d.Center,
		}), nil
	})
	TTSBackends.RegisterFactory(config.BackendStream, func(d Deps) (voice.TextToSpeechProvider, error) {
		synth := engine.NewEspeakStream(d.Runner, d.Config.TTS.EspeakBinary)
		player := engine.NewAplay(d.Runner, d.Config.TTS.PlayerBinary)
		return streamed.New(synth, player, streamed.Options{Name: config.BackendStream, Locale: d.Config.Locale}), nil
	})
	TTSBackends.RegisterFactory(config.BackendWebSpeech, func(d Deps) (voice.TextToSpeechProvider, error) {
		return ttsweb.New(d.Bridge, ttsweb.Options{Locale: d.Config.Locale, Injector: d.Injector}), nil
	})

	STTBackends.RegisterFactory(config.BackendWebSpeech, func(d Deps) (voice.SpeechRecognitionProvider, error) {
		return sttweb.New(sttweb.Options{Locale: d.Config.RecognitionLanguage(), Injector: d.Injector}), nil
	})
	STTBackends.RegisterFactory(config.BackendCloudSpeech, func(d Deps) (voice.SpeechRecognitionProvider, error) {
		client := d.Speech
		if client == nil {
			var err error
			client, err = cloudspeech.NewClient(context.Background(), d.Config.STT.CredentialsFile)
			if err != nil {
				return nil, err
			}
		}
		capture := engine.NewArecord(d.Runner, d.Config.STT.CaptureBinary)
		return cloudspeech.New(client, capture, cloudspeech.Options{
			Language:   d.Config.RecognitionLanguage(),
			SampleRate: d.Config.STT.SampleRate,
		}), nil
	})
}

// Assembly is the wired voice layer of one platform.
type Assembly struct {
	// Platform is the resolved platform id.
	Platform string
	TTS      *tts.Coordinator
	STT      *stt.Coordinator

	bridge voice.HostBridge
	sink   voice.CallbackSink
	script []provider.Initializable
	log    *logger.Logger
}

// Assemble builds and initializes the backends of the configured platform.
// Backends that fail to build or initialize are logged and left out or
// unavailable; Assemble itself only fails on missing dependencies.
func Assemble(ctx context.Context, d Deps) (*Assembly, error) {
	if d.Bridge == nil {
		return nil, errors.InvalidInput("bridge", "is required")
	}
	d.Config.ApplyDefaults()
	if d.Runner == nil {
		d.Runner = process.NewExec(process.Config{})
	}
	if d.Center == nil {
		d.Center = notify.Default()
	}
	if d.Injector == nil {
		d.Injector = hostbridge.NewInjector(d.Config.SettleDelay)
	}
	if d.Metrics == nil {
		d.Metrics = observability.NopVoiceMetrics()
	}
	if d.Logger == nil {
		d.Logger = logger.Get("platform")
	}
	retry := resilience.DefaultRetryConfig()
	if d.Retry != nil {
		retry = *d.Retry
	}

	id := Resolve(d.Config.Platform)
	plat, _ := Lookup(id)
	a := &Assembly{Platform: id, bridge: d.Bridge, sink: d.Sink, log: d.Logger}

	var speakers []voice.TextToSpeechProvider
	for _, name := range plat.TTS {
		if len(d.Config.TTS.Backends) > 0 && !d.Config.HasTTSBackend(name) {
			continue
		}
		p, err := TTSBackends.Create(name, d)
		if err != nil {
			a.log.Warn("building synthesis backend failed", logger.MergeWithError(logger.ProviderFields(name, "build"), err))
			continue
		}
		a.initNative(ctx, p, retry)
		speakers = append(speakers, p)
	}
	if web, err := TTSBackends.Create(config.BackendWebSpeech, d); err == nil {
		speakers = append(speakers, web)
		if in, ok := web.(provider.Initializable); ok {
			a.script = append(a.script, in)
		}
	}

	var recognizers []voice.SpeechRecognitionProvider
	for _, name := range plat.STT {
		if !d.Config.HasSTTBackend(name) {
			continue
		}
		p, err := STTBackends.Create(name, d)
		if err != nil {
			a.log.Warn("building recognition backend failed", logger.MergeWithError(logger.ProviderFields(name, "build"), err))
			continue
		}
		recognizers = append(recognizers, p)
	}
	if web, err := STTBackends.Create(config.BackendWebSpeech, d); err == nil {
		recognizers = append(recognizers, web)
	}

	a.TTS = tts.NewCoordinator(
		provider.NewFallback[voice.TextToSpeechProvider](ttsnoop.New(), speakers...),
		tts.Options{Metrics: d.Metrics},
	)
	a.STT = stt.NewCoordinator(
		provider.NewFallback[voice.SpeechRecognitionProvider](sttnoop.New(), recognizers...),
		stt.Options{Metrics: d.Metrics},
	)

	a.log.Info("voice backends assembled", logger.Fields(
		"platform", id,
		"tts", names(a.TTS.Candidates()),
		"stt", names(a.STT.Candidates()),
	))
	return a, nil
}

// initNative runs Init with retries. A missing executable is not retried.
// A backend that still fails stays in the candidate list as unavailable.
func (a *Assembly) initNative(ctx context.Context, p voice.TextToSpeechProvider, cfg resilience.RetryConfig) {
	in, ok := p.(provider.Initializable)
	if !ok {
		return
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = resilience.DefaultRetryIf
	}
	cfg.RetryIf = func(err error) bool {
		return !stderrors.Is(err, process.ErrNotFound) && retryIf(err)
	}
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		a.log.Debug("retrying engine initialization", logger.MergeWithDuration(
			logger.MergeWithError(logger.Fields(logger.FieldProvider, p.Name(), "attempt", attempt), err),
			backoff,
		))
	}
	try := func(ctx context.Context, _ int) error { return in.Init(ctx) }
	if err := resilience.Do(ctx, cfg, try); err != nil {
		a.log.Warn("synthesis backend unavailable", logger.MergeWithError(logger.ProviderFields(p.Name(), "init"), err))
	}
}

// Attach initializes the script-hosted backends against the bridge and
// binds the transcript sink. It is called at startup and again whenever a
// page connects, and reports whether any recognizer is ready.
func (a *Assembly) Attach(ctx context.Context) bool {
	for _, in := range a.script {
		_ = in.Init(ctx)
	}
	if a.sink == nil {
		return false
	}
	return a.STT.Initialize(ctx, a.bridge, a.sink)
}

// Describe returns the descriptors of every backend.
func (a *Assembly) Describe(ctx context.Context) []voice.Descriptor {
	return append(a.TTS.Describe(ctx), a.STT.Describe(ctx)...)
}

// Close stops and releases every backend.
func (a *Assembly) Close(ctx context.Context) error {
	ttsErr := a.TTS.Close(ctx)
	if err := a.STT.Close(ctx); err != nil {
		return err
	}
	return ttsErr
}

func names[T provider.Provider](ps []T) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return out
}
