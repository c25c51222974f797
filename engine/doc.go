// Package engine wraps the command-line speech engines used by the native
// backends:
//
//   - Espeak: espeak-ng playing directly, with a completion callback
//   - Say: macOS say, announcing completion through a notify.Center
//   - EspeakStream and Aplay: espeak-ng writing WAV to stdout, piped into aplay
//   - Arecord: raw PCM microphone capture for cloud recognition
//
// All engines run through a process.Runner, so tests can substitute
// scripted processes. Text is always passed on stdin, never as arguments.
package engine
