package hostbridge

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/voicekit/voice"
)

// Refs holds callback sinks handed to the host by reference.
type Refs struct {
	mu    sync.RWMutex
	sinks map[string]voice.CallbackSink
}

// NewRefs creates an empty reference table.
func NewRefs() *Refs {
	return &Refs{sinks: make(map[string]voice.CallbackSink)}
}

// Ref registers sink and returns the handle passed to the host. The page
// turns it into an object exposing invokeMethodAsync(method, ...args).
func (r *Refs) Ref(sink voice.CallbackSink) any {
	id := uuid.NewString()
	r.mu.Lock()
	r.sinks[id] = sink
	r.mu.Unlock()
	return map[string]string{RefKey: id}
}

// Release forgets the sink registered under id.
func (r *Refs) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, id)
}

// Len returns the number of registered sinks.
func (r *Refs) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// dispatch delivers a callback frame. It reports false for unknown targets
// or methods.
func (r *Refs) dispatch(target, method string, args []json.RawMessage) bool {
	r.mu.RLock()
	sink, ok := r.sinks[target]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	switch method {
	case MethodSpeechResult:
		var text string
		var isFinal bool
		if len(args) > 0 {
			_ = json.Unmarshal(args[0], &text)
		}
		if len(args) > 1 {
			_ = json.Unmarshal(args[1], &isFinal)
		}
		sink.OnSpeechResult(text, isFinal)
	case MethodSpeechError:
		var msg string
		if len(args) > 0 {
			_ = json.Unmarshal(args[0], &msg)
		}
		sink.OnSpeechError(msg)
	case MethodSpeechEnd:
		var session int64
		ss, ok := sink.(voice.SessionSink)
		if ok && len(args) > 0 && json.Unmarshal(args[0], &session) == nil {
			ss.OnSessionEnd(session)
		} else {
			sink.OnSpeechEnd()
		}
	default:
		return false
	}
	return true
}
