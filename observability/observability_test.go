package observability

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	bad := cfg
	bad.SampleRate = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
	bad = Config{Enabled: true, SampleRate: 1}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for enabled telemetry without endpoint")
	}
}

func TestSetupDisabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	tel, err := Setup(context.Background(), Config{}, Service{Name: "voiced"})
	if err != nil {
		t.Fatal(err)
	}
	if tel.Enabled() {
		t.Error("disabled telemetry must not report enabled")
	}
	if otel.GetTracerProvider() != prev {
		t.Error("disabled telemetry must leave the global provider alone")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of disabled telemetry: %v", err)
	}
}

func TestSetupEnabled(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	cfg := Config{Enabled: true, Insecure: true, Headers: map[string]string{"x-kiosk": "lobby"}}
	cfg.ApplyDefaults()
	tel, err := Setup(context.Background(), cfg, Service{Name: "voiced", Version: "1.2.3", Environment: "test"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if !tel.Enabled() || otel.GetTracerProvider() != tel.tp {
		t.Fatal("expected the exporting tracer provider to be installed")
	}
	// Shutdown flushes to an absent collector; only the setup is under test.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.rate), func(t *testing.T) {
			desc := sampler(tc.rate).Description()
			if !strings.HasPrefix(desc, "ParentBased{root:"+tc.want) {
				t.Errorf("unexpected sampler %s", desc)
			}
		})
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordRequestStart(ctx)
	metrics.RecordRequestEnd(ctx, "voiced", "POST /v1/speak", "ok", 100*time.Millisecond)
	metrics.RecordError(ctx, "HOST_BRIDGE_ERROR", "/v1/listen/start")
}

func TestRecordErrorContext(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	oc := NewOperationContext("voiced", "POST /v1/speak", "req-3", metrics)
	ctx := WithOperationContext(context.Background(), oc)
	RecordErrorContext(ctx, "INVALID_INPUT")
	RecordErrorContext(context.Background(), "ignored")

	if got := oc.Annotations()[AttrErrorCode]; got != "INVALID_INPUT" {
		t.Errorf("expected error code annotation, got %q", got)
	}
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "http.server.errors" {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	if total != 1 {
		t.Errorf("expected one counted error, got %d", total)
	}
}

func TestVoiceMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	vm, err := NewVoiceMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewVoiceMetrics failed: %v", err)
	}
	ctx := context.Background()
	vm.RecordSpeak(ctx, "espeak", "completed", 200*time.Millisecond)
	vm.RecordSpeak(ctx, "espeak", "completed", 300*time.Millisecond)
	vm.RecordFallback(ctx, "tts", "noop")
	vm.RecordListen(ctx, "webspeech", "start", "ok")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	want := map[string]int64{"voice.speak.total": 2, "voice.fallback.total": 1, "voice.listen.total": 1}
	for name, n := range want {
		if sums[name] != n {
			t.Errorf("%s = %d, want %d", name, sums[name], n)
		}
	}
}

func TestNopVoiceMetrics(t *testing.T) {
	vm := NopVoiceMetrics()
	if vm == nil {
		t.Fatal("expected non-nil metrics")
	}
	vm.RecordSpeak(context.Background(), "noop", "skipped", 0)
}

func TestOperationContext(t *testing.T) {
	oc := NewOperationContext("voiced", "POST /v1/speak", "req-1", nil)
	ctx := WithOperationContext(context.Background(), oc)

	retrieved := OperationContextFromContext(ctx)
	if retrieved == nil || retrieved.RequestID != "req-1" {
		t.Fatalf("expected operation context from context, got %+v", retrieved)
	}
	if OperationContextFromContext(context.Background()) != nil {
		t.Error("expected nil when operation context not set")
	}

	oc.StartTime = time.Now().Add(-50 * time.Millisecond)
	if d := oc.Duration(); d < 45*time.Millisecond {
		t.Errorf("expected duration around 50ms, got %v", d)
	}
}

func TestOperationContextSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	metrics, _ := NewMetrics(noop.NewMeterProvider().Meter("test"))
	oc := NewOperationContext("voiced", "POST /v1/listen/start", "req-2", metrics)

	ctx, span := oc.StartSpanForOperation(context.Background(), SpanHTTPRequest)
	ctx = WithOperationContext(ctx, oc)
	AnnotateContext(ctx, AttrCapability, "stt")
	AnnotateContext(ctx, AttrProvider, "webspeech")
	AnnotateContext(ctx, AttrProvider, "cloudspeech")
	AnnotateContext(context.Background(), AttrProvider, "ignored")
	oc.EndOperation(ctx, span, "error", fmt.Errorf("listening did not start"))

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != SpanHTTPRequest {
		t.Fatalf("expected one %s span, got %v", SpanHTTPRequest, spans)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected the error to be recorded on the span")
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrProvider] != "cloudspeech" || attrs[AttrCapability] != "stt" {
		t.Errorf("annotations missing from span: %v", attrs)
	}
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("voiced", "1.0.0")

	sh.AddComponent(Health{Name: "tts", Status: HealthStatusUp})
	if sh.Status != HealthStatusUp {
		t.Errorf("expected status 'up' after healthy component, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "bridge", Status: HealthStatusDegraded, Message: "no page connected"})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}
	if !sh.Serving() {
		t.Error("degraded service still serves")
	}

	sh.AddComponent(Health{Name: "stt", Status: HealthStatusDown})
	if sh.Status != HealthStatusDown || sh.Serving() {
		t.Errorf("expected status 'down', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "late", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
	if len(sh.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(sh.Components))
	}
}

func TestSpanHelpers(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), SpanSpeak)
	SetSpanAttribute(ctx, AttrProvider, "espeak")
	SetSpanAttribute(ctx, AttrTextLength, 5)
	SetSpanAttribute(ctx, AttrFallback, false)
	SetSpanAttribute(ctx, "unsupported", struct{}{})
	SetSpanError(ctx, fmt.Errorf("engine failed"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if n := len(spans[0].Attributes); n != 3 {
		t.Errorf("expected 3 attributes, got %d", n)
	}

	// Without a recording span the helpers are no-ops.
	SetSpanAttribute(context.Background(), "key", "value")
	SetSpanError(context.Background(), fmt.Errorf("no span"))
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Service{Name: "voiced", Version: "1.0.0", Environment: "test"})
	if err != nil {
		t.Fatalf("newResource failed: %v", err)
	}
	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["service.name"] != "voiced" || attrs["service.version"] != "1.0.0" || attrs["environment"] != "test" {
		t.Errorf("unexpected resource attributes %v", attrs)
	}
}
