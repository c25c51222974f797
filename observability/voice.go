package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// VoiceMetrics holds the instruments recorded by the provider coordinators.
type VoiceMetrics struct {
	speakTotal    metric.Int64Counter
	speakDuration metric.Float64Histogram
	fallbackTotal metric.Int64Counter
	listenTotal   metric.Int64Counter
}

// NewVoiceMetrics creates voice instruments on the given meter.
func NewVoiceMetrics(meter metric.Meter) (*VoiceMetrics, error) {
	speakTotal, err := meter.Int64Counter("voice.speak.total",
		metric.WithDescription("Speak calls by provider and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating voice.speak.total counter: %w", err)
	}

	speakDuration, err := meter.Float64Histogram("voice.speak.duration",
		metric.WithDescription("Time from Speak to its outcome in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating voice.speak.duration histogram: %w", err)
	}

	fallbackTotal, err := meter.Int64Counter("voice.fallback.total",
		metric.WithDescription("Calls served by the fallback terminus because no candidate was available"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating voice.fallback.total counter: %w", err)
	}

	listenTotal, err := meter.Int64Counter("voice.listen.total",
		metric.WithDescription("Recognition operations by provider, operation and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating voice.listen.total counter: %w", err)
	}

	return &VoiceMetrics{
		speakTotal:    speakTotal,
		speakDuration: speakDuration,
		fallbackTotal: fallbackTotal,
		listenTotal:   listenTotal,
	}, nil
}

// NopVoiceMetrics returns instruments that record nothing.
func NopVoiceMetrics() *VoiceMetrics {
	m, _ := NewVoiceMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

// RecordSpeak records one finished Speak call.
func (m *VoiceMetrics) RecordSpeak(ctx context.Context, provider, outcome string, duration time.Duration) {
	m.speakTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
	m.speakDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
	))
}

// RecordFallback records a call that fell through to the terminus.
func (m *VoiceMetrics) RecordFallback(ctx context.Context, capability, provider string) {
	m.fallbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("provider", provider),
	))
}

// RecordListen records a recognition Initialize, Start or Stop.
func (m *VoiceMetrics) RecordListen(ctx context.Context, provider, operation, status string) {
	m.listenTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}
