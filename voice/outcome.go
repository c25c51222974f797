package voice

import (
	"errors"

	"github.com/kbukum/voicekit/completion"
)

// ErrInterrupted rejects the completion of an utterance ended by
// StopSpeaking or by a newer Speak on the same backend.
var ErrInterrupted = errors.New("voice: utterance interrupted")

// Outcome describes how a Speak call ended.
type Outcome int

const (
	// OutcomeSkipped means the backend was not ready and nothing was played.
	OutcomeSkipped Outcome = iota
	// OutcomeCompleted means the engine signaled the end of playback.
	OutcomeCompleted
	// OutcomeSubmitted means the text was handed off and the engine gives no
	// completion signal (fire-and-forget or stream handoff).
	OutcomeSubmitted
	// OutcomeTimedOut means the completion ceiling elapsed first. Playback
	// may still be in flight.
	OutcomeTimedOut
	// OutcomeInterrupted means StopSpeaking or a newer Speak ended the utterance.
	OutcomeInterrupted
	// OutcomeFailed means the engine raised an error; it has been logged.
	OutcomeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeSkipped:     "skipped",
	OutcomeCompleted:   "completed",
	OutcomeSubmitted:   "submitted",
	OutcomeTimedOut:    "timed_out",
	OutcomeInterrupted: "interrupted",
	OutcomeFailed:      "failed",
}

// String returns the outcome name.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Spoke reports whether the text reached the engine.
func (o Outcome) Spoke() bool {
	switch o {
	case OutcomeCompleted, OutcomeSubmitted, OutcomeTimedOut, OutcomeInterrupted:
		return true
	default:
		return false
	}
}

// OutcomeOf maps the result of awaiting an utterance to an Outcome. A
// canceled wait counts as an interruption.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, completion.ErrTimedOut):
		return OutcomeTimedOut
	case errors.Is(err, ErrInterrupted), errors.Is(err, completion.ErrCanceled):
		return OutcomeInterrupted
	default:
		return OutcomeFailed
	}
}
