// Package voice defines the capability contracts shared by every speech
// backend: text-to-speech and speech recognition providers, the host bridge
// used by script-hosted engines, and the small value types that flow
// between them.
//
// Backends live in the tts and stt sub-packages. Callers never talk to a
// backend directly; they hold a coordinator that picks the first available
// backend on every call.
//
// # Failure semantics
//
// Speak and StopSpeaking never return errors. Speak reports an Outcome so
// callers can tell "no sound because unavailable" from "finished" without
// treating either as a failure. Recognition Start and Stop do return errors
// since the caller must know whether the microphone is live.
//
// # Initialization
//
// Every backend owns a StateMachine. Operations proceed only in StateReady;
// a failed backend can be retried with an explicit Begin.
package voice
