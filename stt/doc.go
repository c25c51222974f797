// Package stt coordinates speech recognition backends.
//
// Unlike text-to-speech, recognition failures are returned to the caller:
// a caller that believes the microphone is live when it is not is worse off
// than one that sees the error.
package stt
