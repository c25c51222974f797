package provider

import "context"

// Status is a backend's health as seen by the fallback chain.
type Status int

const (
	// StatusHealthy means the backend would be selected.
	StatusHealthy Status = iota
	// StatusDegraded means the backend serves but is recovering, e.g. a
	// half-open circuit breaker.
	StatusDegraded
	// StatusUnavailable means selection skips the backend.
	StatusUnavailable
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HealthStatus is a backend's detailed health.
type HealthStatus struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Live reports whether the backend can take calls.
func (h HealthStatus) Live() bool { return h.Status != StatusUnavailable }

// HealthChecker is implemented by backends that can explain their
// availability beyond IsAvailable, such as a recognizer behind a circuit
// breaker.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// Check returns p's health, asking p itself when it is a HealthChecker and
// deriving it from IsAvailable otherwise.
func Check(ctx context.Context, p Provider) HealthStatus {
	if hc, ok := p.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	if p.IsAvailable(ctx) {
		return HealthStatus{Status: StatusHealthy}
	}
	return HealthStatus{Status: StatusUnavailable}
}
