// Package tts coordinates text-to-speech backends.
//
// A Coordinator holds the candidates of one platform build in priority
// order, followed by the no-op terminus. Every call re-evaluates
// availability, so a backend whose initialization completes late is picked
// up without restarting.
//
//	fb := provider.NewFallback[voice.TextToSpeechProvider](noop.New(), native, web)
//	c := tts.NewCoordinator(fb, tts.Options{Metrics: metrics})
//	c.Speak(ctx, "Hallo")
package tts
