package voice

import (
	"context"
	"time"

	"github.com/kbukum/voicekit/provider"
)

const (
	// DefaultLocale is requested by every backend unless configured otherwise.
	DefaultLocale = "de-DE"
	// DefaultCompletionTimeout bounds notification-driven completion waits.
	DefaultCompletionTimeout = 30 * time.Second
)

// SynthesizerDidFinish is the notification name posted by notification-driven
// engines when an utterance ends. The notification object is the utterance id.
const SynthesizerDidFinish = "voicekit.synthesizer.didFinish"

// Info keys of a SynthesizerDidFinish notification.
const (
	// InfoEngine names the posting engine.
	InfoEngine = "engine"
	// InfoFinished is true when the utterance played to the end and false
	// when it was stopped or failed.
	InfoFinished = "finished"
	// InfoError carries the engine error message, if any.
	InfoError = "error"
)

// TextToSpeechProvider synthesizes and plays text.
//
// Name is stable for the lifetime of the instance. IsAvailable must not
// block on the engine and must never report true before initialization
// completed successfully.
type TextToSpeechProvider interface {
	provider.Provider

	// Speak stops any in-flight utterance on this backend, then plays text.
	// It never returns an error; the Outcome describes what happened.
	Speak(ctx context.Context, text string) Outcome
	// StopSpeaking stops playback. Stopping an idle backend is a no-op.
	StopSpeaking(ctx context.Context)
}

// SpeechRecognitionProvider turns microphone input into transcript events.
type SpeechRecognitionProvider interface {
	provider.Provider

	// Initialize performs one-time setup against the host and binds sink as
	// the target of transcript events. Failures are reported as false.
	// Calling it again must not load the engine twice.
	Initialize(ctx context.Context, bridge HostBridge, sink CallbackSink) bool
	// Start begins a listening session, restarting one already in progress.
	Start(ctx context.Context) error
	// Stop ends the listening session. Stopping while idle is a no-op.
	Stop(ctx context.Context) error
}

// HostBridge calls into a hosted script environment.
type HostBridge interface {
	// EvalBool evaluates expr in the host and returns its truthiness.
	EvalBool(ctx context.Context, expr string) (bool, error)
	// Invoke calls the named host function with args, discarding any result.
	Invoke(ctx context.Context, fn string, args ...any) error
}

// Referencer is implemented by host bridges that cannot pass Go values
// directly and instead hand the host an opaque reference to a sink.
type Referencer interface {
	Ref(sink CallbackSink) any
}

// CallbackSink receives transcript events from a recognizer.
// Method names are part of the host compatibility surface.
type CallbackSink interface {
	OnSpeechResult(text string, isFinal bool)
	OnSpeechError(message string)
	OnSpeechEnd()
}

// SessionSink is implemented by sinks that want to know which listening
// session ended. Hosts echo the session number Start passed them, so the
// end of a session replaced by a restart can be told apart from the end of
// the current one.
type SessionSink interface {
	OnSessionEnd(session int64)
}

// CallbackTarget returns the value handed to the host for sink: a reference
// when bridge implements Referencer, the sink itself otherwise.
func CallbackTarget(bridge HostBridge, sink CallbackSink) any {
	if r, ok := bridge.(Referencer); ok {
		return r.Ref(sink)
	}
	return sink
}

// SinkFuncs adapts plain functions to CallbackSink. Nil fields are ignored.
type SinkFuncs struct {
	Result func(text string, isFinal bool)
	Error  func(message string)
	End    func()
}

// OnSpeechResult forwards to Result.
func (s SinkFuncs) OnSpeechResult(text string, isFinal bool) {
	if s.Result != nil {
		s.Result(text, isFinal)
	}
}

// OnSpeechError forwards to Error.
func (s SinkFuncs) OnSpeechError(message string) {
	if s.Error != nil {
		s.Error(message)
	}
}

// OnSpeechEnd forwards to End.
func (s SinkFuncs) OnSpeechEnd() {
	if s.End != nil {
		s.End()
	}
}
