// Package process runs the command-line speech engines.
//
// Run executes a command to completion and captures its output (voice
// listings). Start launches a long-running command (synthesis, playback,
// capture) and returns a Process handle that can be waited on or stopped.
// Commands run in their own process group so stopping one also stops any
// children it spawned.
package process
