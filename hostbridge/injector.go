package hostbridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/voice"
)

// InjectFn is the page function bridge.js exposes to add a script element.
const InjectFn = "voicekit.injectScript"

// Sessioner is implemented by bridges whose page can be replaced, so
// injection state is tracked per page session.
type Sessioner interface {
	Session() string
}

// Injector loads a script resource into the host exactly once per page
// session. The marker element in the page is checked before injecting, and
// a settle delay is waited after injecting.
type Injector struct {
	ScriptID string
	Source   string
	Settle   time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	injected   map[string]bool
	group      singleflight.Group
	injections atomic.Int64
}

// NewInjector creates an injector for the embedded speech script.
func NewInjector(settle time.Duration) *Injector {
	return NewScriptInjector(SpeechScriptID, SpeechScript(), settle)
}

// NewScriptInjector creates an injector for an arbitrary script resource.
func NewScriptInjector(id, source string, settle time.Duration) *Injector {
	return &Injector{
		ScriptID: id,
		Source:   source,
		Settle:   settle,
		sleep:    sleepCtx,
		injected: make(map[string]bool),
	}
}

// MarkerExpr returns the expression testing for the marker element.
func (i *Injector) MarkerExpr() string {
	return fmt.Sprintf("document.getElementById(%q) !== null", i.ScriptID)
}

// Injections returns how many times the script was actually injected.
func (i *Injector) Injections() int64 {
	return i.injections.Load()
}

// Ensure makes sure the script is loaded in bridge. Concurrent calls for the
// same page share one attempt.
func (i *Injector) Ensure(ctx context.Context, bridge voice.HostBridge) error {
	key := SessionKey(bridge)

	i.mu.Lock()
	done := i.injected[key]
	i.mu.Unlock()
	if done {
		return nil
	}

	_, err, _ := i.group.Do(key, func() (any, error) {
		i.mu.Lock()
		done := i.injected[key]
		i.mu.Unlock()
		if done {
			return nil, nil
		}

		present, err := bridge.EvalBool(ctx, i.MarkerExpr())
		if err != nil {
			return nil, err
		}
		if !present {
			if err := bridge.Invoke(ctx, InjectFn, i.ScriptID, i.Source); err != nil {
				return nil, err
			}
			i.injections.Add(1)
			if err := i.sleep(ctx, i.Settle); err != nil {
				return nil, errors.HostBridgeError("inject settle", err)
			}
		}

		i.mu.Lock()
		i.injected[key] = true
		i.mu.Unlock()
		return nil, nil
	})
	return err
}

// SessionKey identifies bridge and, for a Sessioner, its current page
// session.
func SessionKey(bridge voice.HostBridge) string {
	key := fmt.Sprintf("%p", bridge)
	if s, ok := bridge.(Sessioner); ok {
		key += "/" + s.Session()
	}
	return key
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
