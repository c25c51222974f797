// Package transcript keeps the most recent recognition events in memory.
//
// A Log is a voice.CallbackSink: bind it to a recognizer and it records
// partial and final transcripts, recognition errors and end-of-session
// markers in a fixed-size ring, newest last. Subscribers see each entry as
// it is recorded; voiced forwards them to the live transcript stream.
package transcript
