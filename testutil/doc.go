// Package testutil provides fakes shared by voicekit tests.
//
//   - FakeRunner and FakeProcess script process.Runner without executables
//   - FakeBridge records host bridge calls and answers probe expressions
//   - RecordingSink collects transcript callbacks
//   - LogCapture builds a JSON logger over a buffer and counts entries
//
// Everything here is safe for concurrent use because the backends under
// test call into fakes from their own goroutines.
package testutil
