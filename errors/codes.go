package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeUnavailable indicates the provider is not ready or the feature is unsupported.
	ErrCodeUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	// ErrCodeTimeout indicates an operation exceeded its ceiling.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeHostBridge indicates a call into the script host failed.
	ErrCodeHostBridge ErrorCode = "HOST_BRIDGE_ERROR"
)

// Lifecycle errors
const (
	// ErrCodeInitFailed indicates engine initialization failed.
	ErrCodeInitFailed ErrorCode = "INITIALIZATION_FAILED"
	// ErrCodeNotInitialized indicates an operation ran before initialization completed.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"
	// ErrCodeClosed indicates the component has been disposed.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Engine errors
const (
	// ErrCodeEngine indicates the native or script engine failed during an operation.
	ErrCodeEngine ErrorCode = "ENGINE_ERROR"
	// ErrCodeRecognition indicates a recognition session could not start or stop.
	ErrCodeRecognition ErrorCode = "RECOGNITION_FAILED"
)

// Request errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeUnavailable: true,
	ErrCodeTimeout:     true,
	ErrCodeHostBridge:  true,
	ErrCodeInitFailed:  true,
	ErrCodeEngine:      true,
	ErrCodeInternal:    false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
