package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNewRetryableDetection(t *testing.T) {
	if New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout).Retryable != true {
		t.Error("TIMEOUT should be retryable")
	}
	if New(ErrCodeInvalidInput, "bad", http.StatusBadRequest).Retryable {
		t.Error("INVALID_INPUT should not be retryable")
	}
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("device busy")
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"unavailable", Unavailable("espeak"), ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"init failed", InitializationFailed("say", cause), ErrCodeInitFailed, http.StatusServiceUnavailable},
		{"not initialized", NotInitialized("webspeech"), ErrCodeNotInitialized, http.StatusConflict},
		{"engine", EngineError("espeak", "speak", cause), ErrCodeEngine, http.StatusBadGateway},
		{"recognition", RecognitionFailed("webspeech", "start", cause), ErrCodeRecognition, http.StatusBadGateway},
		{"host bridge", HostBridgeError("eval", cause), ErrCodeHostBridge, http.StatusBadGateway},
		{"timeout", Timeout("speak"), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"closed", Closed("affinity thread"), ErrCodeClosed, http.StatusServiceUnavailable},
		{"invalid input", InvalidInput("text", "must not be empty"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"internal", Internal(cause), ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
			if tc.err.Message == "" {
				t.Error("expected message")
			}
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := EngineError("espeak", "speak", fmt.Errorf("exit status 1"))
	if !strings.Contains(err.Error(), "exit status 1") || !strings.Contains(err.Error(), string(ErrCodeEngine)) {
		t.Errorf("unexpected error string %q", err.Error())
	}
}

func TestUnwrapAndIs(t *testing.T) {
	root := fmt.Errorf("socket closed")
	err := fmt.Errorf("start: %w", RecognitionFailed("webspeech", "start", root))

	if !stderrors.Is(err, root) {
		t.Error("expected errors.Is to reach the root cause")
	}
	if !stderrors.Is(err, RecognitionFailed("", "", nil)) {
		t.Error("expected errors.Is to match by code")
	}
	if stderrors.Is(err, Unavailable("")) {
		t.Error("different codes must not match")
	}
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeRecognition {
		t.Fatalf("expected AsAppError to find recognition error, got %v", appErr)
	}
	if !IsAppError(err) {
		t.Error("expected IsAppError true")
	}
}

func TestWithDetailAndResponse(t *testing.T) {
	err := Unavailable("say").WithDetail("platform", "darwin")
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeUnavailable {
		t.Errorf("expected code in response, got %s", resp.Error.Code)
	}
	if resp.Error.Details["platform"] != "darwin" || resp.Error.Details["provider"] != "say" {
		t.Errorf("unexpected details %v", resp.Error.Details)
	}
	if !resp.Error.Retryable {
		t.Error("unavailable should be retryable")
	}
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"app error passes through", fmt.Errorf("wrapped: %w", Unavailable("espeak")), ErrCodeUnavailable},
		{"deadline", fmt.Errorf("listen: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"plain", fmt.Errorf("boom"), ErrCodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := From(tc.err, "listen.start"); got.Code != tc.want {
				t.Errorf("From(%v).Code = %s, want %s", tc.err, got.Code, tc.want)
			}
		})
	}
}

func TestResponseHidesCause(t *testing.T) {
	resp := Internal(fmt.Errorf("secret path /etc/voiced/gcp.json")).ToResponse().WithRequestID("req-1")
	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(body), "gcp.json") {
		t.Errorf("cause leaked into response: %s", body)
	}
	if resp.Error.RequestID != "req-1" {
		t.Errorf("request id = %q", resp.Error.RequestID)
	}
}
