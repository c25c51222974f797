package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so callers
// can match with errors.Is(err, errors.Unavailable("")).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Voice error constructors ---

// Unavailable reports a provider that is not ready or whose feature probe failed.
func Unavailable(provider string) *AppError {
	return &AppError{
		Code: ErrCodeUnavailable, Message: fmt.Sprintf("The %s voice provider is not available.", provider),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"provider": provider},
	}
}

// InitializationFailed reports an engine that failed to start.
func InitializationFailed(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeInitFailed, Message: fmt.Sprintf("The %s voice provider failed to initialize.", provider),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"provider": provider}, Cause: cause,
	}
}

// NotInitialized reports an operation attempted before initialization completed.
func NotInitialized(provider string) *AppError {
	return &AppError{
		Code: ErrCodeNotInitialized, Message: fmt.Sprintf("The %s voice provider has not been initialized.", provider),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"provider": provider},
	}
}

// EngineError reports a failure inside the underlying speech engine.
func EngineError(provider, operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeEngine, Message: fmt.Sprintf("The %s engine failed during %s.", provider, operation),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"provider": provider, "operation": operation}, Cause: cause,
	}
}

// RecognitionFailed reports a listening session that did not start or stop.
func RecognitionFailed(provider, operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeRecognition, Message: fmt.Sprintf("Speech recognition %s failed on %s.", operation, provider),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"provider": provider, "operation": operation}, Cause: cause,
	}
}

// HostBridgeError reports a failed call into the script host.
func HostBridgeError(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeHostBridge, Message: fmt.Sprintf("The script host call %q failed.", operation),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that exceeded its ceiling.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The operation took too long.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// Closed reports use of a disposed component.
func Closed(component string) *AppError {
	return &AppError{
		Code: ErrCodeClosed, Message: fmt.Sprintf("The %s has been closed.", component),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"component": component},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Internal creates a new AppError for an unexpected error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
