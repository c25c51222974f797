package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/provider"
)

// HealthChecker reports the health of one component.
type HealthChecker func(ctx context.Context) observability.Health

// Health returns a handler that aggregates component health. The service
// answers 503 only when a component is down; a capability served by its
// terminus alone is degraded, not down.
func Health(serviceName, version string, checkers ...HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.NewServiceHealth(serviceName, version)
		for _, check := range checkers {
			start := time.Now()
			h := check(c.Request.Context())
			h.LatencyMS = time.Since(start).Milliseconds()
			sh.AddComponent(h)
		}

		httpStatus := http.StatusOK
		if !sh.Serving() {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":     sh.Status,
			"service":    sh.Service,
			"version":    sh.Version,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": sh.Components,
		})
	}
}

// Capability reports a voice capability from its candidate backends. It is
// up when any backend is live and degraded otherwise. Each backend's
// provider.Check result appears in Details.
func Capability[T provider.Provider](name string, candidates func() []T) HealthChecker {
	return func(ctx context.Context) observability.Health {
		h := observability.Health{
			Name:    name,
			Status:  observability.HealthStatusDegraded,
			Message: "no backend available",
			Details: map[string]string{},
		}
		for _, p := range candidates() {
			ps := provider.Check(ctx, p)
			state := ps.Status.String()
			if ps.Message != "" {
				state += ": " + ps.Message
			}
			h.Details[p.Name()] = state
			if ps.Live() && h.Status != observability.HealthStatusUp {
				h.Status, h.Message = observability.HealthStatusUp, "serving via "+p.Name()
			}
		}
		return h
	}
}

// BridgeState is the view of the host bridge needed for health reporting.
type BridgeState interface {
	Connected() bool
	Session() string
}

// Bridge reports whether a page is attached to the host bridge.
func Bridge(b BridgeState) HealthChecker {
	return func(context.Context) observability.Health {
		if !b.Connected() {
			return observability.Health{
				Name:    "bridge",
				Status:  observability.HealthStatusDegraded,
				Message: "no page connected",
			}
		}
		return observability.Health{
			Name:    "bridge",
			Status:  observability.HealthStatusUp,
			Details: map[string]string{"session": b.Session()},
		}
	}
}
