// Package resilience provides the retry and circuit breaker patterns used
// around speech engines.
//
// Native engine initialization is retried with backoff, which drives the
// Failed -> Initializing transition of a backend:
//
//	err := resilience.Do(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context, attempt int) error {
//	    return backend.Init(ctx)
//	})
//
// Remote recognition is guarded by a circuit breaker so a failing service
// reports unavailable instead of being called on every Start:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("cloudspeech"))
//	err := cb.Execute(ctx, openStream)
//
// Cancellation does not count as a failure.
package resilience
