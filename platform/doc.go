// Package platform resolves the backends of the running platform once at
// startup.
//
// A platform is a named, ordered list of native backend names. Backend
// names resolve to factories in the TTS and STT registries. Assemble
// builds the native backends of one platform, appends the script-hosted
// backend and the no-op terminus for each capability, initializes the
// native engines and wires both coordinators:
//
//	a, err := platform.Assemble(ctx, platform.Deps{Config: cfg.Voice, Bridge: hub, Sink: ring})
//	defer a.Close(ctx)
//	a.TTS.Speak(ctx, "Hallo")
//
// Built-in platforms are "linux", "darwin" and "generic". Register adds or
// replaces one.
package platform
