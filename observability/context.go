package observability

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OperationContext holds observability context for one HTTP request
// against the diagnostics server. Handlers deeper in the stack Annotate it
// with the voice outcome or the backend that served the call; the
// annotations land on the request span when it ends.
type OperationContext struct {
	ServiceName   string
	OperationName string
	RequestID     string
	StartTime     time.Time
	Metrics       *Metrics

	mu          sync.Mutex
	annotations map[string]string
}

// NewOperationContext creates a new operation context.
// If metrics is nil, metric recording is skipped.
func NewOperationContext(serviceName, operationName, requestID string, metrics *Metrics) *OperationContext {
	return &OperationContext{
		ServiceName:   serviceName,
		OperationName: operationName,
		RequestID:     requestID,
		StartTime:     time.Now(),
		Metrics:       metrics,
	}
}

// operationContextKey is the context key for OperationContext.
type operationContextKey struct{}

// WithOperationContext stores an OperationContext in the context.
func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// OperationContextFromContext retrieves the OperationContext from context, or nil.
func OperationContextFromContext(ctx context.Context) *OperationContext {
	if oc, ok := ctx.Value(operationContextKey{}).(*OperationContext); ok {
		return oc
	}
	return nil
}

// StartSpanForOperation starts a traced span and records the request start metric.
func (oc *OperationContext) StartSpanForOperation(ctx context.Context, spanName string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, spanName)
	span.SetAttributes(
		attribute.String(AttrServiceName, oc.ServiceName),
		attribute.String(AttrOperationName, oc.OperationName),
		attribute.String(AttrRequestID, oc.RequestID),
	)

	if oc.Metrics != nil {
		oc.Metrics.RecordRequestStart(ctx)
	}
	return ctx, span
}

// Annotate attaches a key/value to the request span, e.g.
// Annotate(AttrProvider, "cloudspeech"). Later values for a key win.
func (oc *OperationContext) Annotate(key, value string) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.annotations == nil {
		oc.annotations = make(map[string]string)
	}
	oc.annotations[key] = value
}

// Annotations returns a copy of the recorded annotations.
func (oc *OperationContext) Annotations() map[string]string {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	out := make(map[string]string, len(oc.annotations))
	for k, v := range oc.annotations {
		out[k] = v
	}
	return out
}

// AnnotateContext annotates the OperationContext in ctx, if any.
func AnnotateContext(ctx context.Context, key, value string) {
	if oc := OperationContextFromContext(ctx); oc != nil {
		oc.Annotate(key, value)
	}
}

// RecordError annotates the request with an error code and counts it
// against the route.
func (oc *OperationContext) RecordError(ctx context.Context, code string) {
	oc.Annotate(AttrErrorCode, code)
	if oc.Metrics != nil {
		oc.Metrics.RecordError(ctx, code, oc.OperationName)
	}
}

// RecordErrorContext calls RecordError on the OperationContext in ctx, if any.
func RecordErrorContext(ctx context.Context, code string) {
	if oc := OperationContextFromContext(ctx); oc != nil {
		oc.RecordError(ctx, code)
	}
}

// EndOperation ends the span and records request-end metrics.
func (oc *OperationContext) EndOperation(ctx context.Context, span trace.Span, status string, err error) {
	duration := time.Since(oc.StartTime)

	ann := oc.Annotations()
	keys := make([]string, 0, len(ann))
	for k := range ann {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		span.SetAttributes(attribute.String(k, ann[k]))
	}

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if oc.Metrics != nil {
		oc.Metrics.RecordRequestEnd(ctx, oc.ServiceName, oc.OperationName, status, duration)
	}
}

// Duration returns the elapsed time since operation start.
func (oc *OperationContext) Duration() time.Duration {
	return time.Since(oc.StartTime)
}
