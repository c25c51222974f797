// Package provider implements a generic provider framework using Go generics
// for swappable backends with runtime selection.
//
// A Registry maps backend names to typed factories. A Fallback holds the
// backends created for one capability in priority order plus a terminus
// that is always safe to call, and picks the first available backend on
// every call.
//
// Opt-in lifecycle:
//   - Initializable: providers that need setup (probe a binary, list voices)
//   - Closeable: providers that hold resources (threads, client connections)
//   - HealthChecker: providers that can explain their availability
//
// # Usage
//
//	reg := provider.NewRegistry[voice.TextToSpeechProvider, Deps]()
//	reg.RegisterFactory("espeak", newEspeak)
//	p, _ := reg.Create("espeak", deps)
//	fb := provider.NewFallback[voice.TextToSpeechProvider](noop.New(), p)
//	active, live := fb.Select(ctx)
package provider
