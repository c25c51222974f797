// Package observability provides OpenTelemetry tracing and metrics for the
// voice daemon.
//
// Tracing and metrics export over OTLP HTTP when enabled:
//
//	tel, err := observability.Setup(ctx, cfg.Telemetry, observability.Service{
//	    Name:    "voiced",
//	    Version: version.GetShortVersion(),
//	})
//	defer tel.Shutdown(ctx)
//
// Coordinators record voice instruments:
//
//	vm, err := observability.NewVoiceMetrics(observability.Meter("voicekit"))
//	vm.RecordSpeak(ctx, "espeak", "completed", elapsed)
//	vm.RecordFallback(ctx, "tts", "noop")
//
// Error responses of the diagnostics server are counted by code:
//
//	observability.RecordErrorContext(r.Context(), "HOST_BRIDGE_ERROR")
//
// Health:
//
//	health := observability.NewServiceHealth("voiced", "1.0.0")
//	health.AddComponent(observability.Health{Name: "tts", Status: observability.HealthStatusUp})
package observability
