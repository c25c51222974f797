package middleware

import (
	"fmt"
	"net/http"

	"github.com/kbukum/voicekit/observability"
)

// Tracing opens an HTTP request span per request and, when metrics is
// non-nil, records request counters and latency. Place it inside RequestID
// so the span carries the request id.
func Tracing(service string, metrics *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			oc := observability.NewOperationContext(service, r.Method+" "+r.URL.Path, r.Header.Get(HeaderRequestID), metrics)
			ctx := observability.WithOperationContext(r.Context(), oc)
			ctx, span := oc.StartSpanForOperation(ctx, observability.SpanHTTPRequest)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			status, err := "ok", error(nil)
			switch {
			case sw.status >= 500:
				status, err = "error", fmt.Errorf("%s %s: status %d", r.Method, r.URL.Path, sw.status)
			case sw.status >= 400:
				status = "rejected"
			}
			oc.EndOperation(ctx, span, status, err)
		})
	}
}
