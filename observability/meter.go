package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the HTTP instruments recorded by the diagnostics server.
type Metrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	errors   metric.Int64Counter
}

// NewMetrics creates request instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Requests by route and status class"),
	); err != nil {
		return nil, fmt.Errorf("creating http.server.requests counter: %w", err)
	}
	if m.latency, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Request handling time"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating http.server.duration histogram: %w", err)
	}
	if m.inFlight, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Requests being handled, including open streams"),
	); err != nil {
		return nil, fmt.Errorf("creating http.server.active_requests counter: %w", err)
	}
	if m.errors, err = meter.Int64Counter("http.server.errors",
		metric.WithDescription("Error responses by error code and route"),
	); err != nil {
		return nil, fmt.Errorf("creating http.server.errors counter: %w", err)
	}
	return &m, nil
}

// RecordRequestStart increments the in-flight count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.inFlight.Add(ctx, 1)
}

// RecordRequestEnd decrements the in-flight count and records the request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, service, route, status string, duration time.Duration) {
	base := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("route", route),
	}
	m.inFlight.Add(ctx, -1)
	m.requests.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String("status", status))...))
	m.latency.Record(ctx, duration.Seconds(), metric.WithAttributes(base...))
}

// RecordError counts an error response by its code, e.g. HOST_BRIDGE_ERROR.
func (m *Metrics) RecordError(ctx context.Context, code, route string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("route", route),
	))
}
