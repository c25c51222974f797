package hostbridge

import (
	"encoding/json"
)

// Frame operations.
const (
	OpEval     = "eval"
	OpInvoke   = "invoke"
	OpResult   = "result"
	OpCallback = "callback"
	OpHello    = "hello"
)

// RefKey is the property marking a callback reference in invoke arguments.
const RefKey = "__voicekitRef"

// Callback method names dispatched to a voice.CallbackSink.
const (
	MethodSpeechResult = "OnSpeechResult"
	MethodSpeechError  = "OnSpeechError"
	MethodSpeechEnd    = "OnSpeechEnd"
)

// Frame is one JSON websocket message in either direction.
type Frame struct {
	ID     string            `json:"id,omitempty"`
	Op     string            `json:"op"`
	Expr   string            `json:"expr,omitempty"`
	Fn     string            `json:"fn,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`
	Value  json.RawMessage   `json:"value,omitempty"`
	Error  string            `json:"error,omitempty"`
	Target string            `json:"target,omitempty"`
	Method string            `json:"method,omitempty"`
	Page   string            `json:"page,omitempty"`
}

// encodeArgs marshals invoke arguments one by one.
func encodeArgs(args []any) ([]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// truthy mirrors JavaScript truthiness for a JSON value.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
