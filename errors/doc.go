// Package errors provides the structured error type used across voicekit.
//
// AppError carries a machine-readable code, an HTTP status for the
// diagnostics API, a retryable flag, and optional details. The constructors
// mirror the voice error taxonomy: unavailable providers, failed
// initialization, engine and recognition failures, host bridge failures and
// timeouts.
package errors
