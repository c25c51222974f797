package hostbridge

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/voice"
)

// ErrNoPage is the cause reported while no page is connected.
var ErrNoPage = stderrors.New("hostbridge: no page connected")

// Hub accepts page connections and routes host bridge calls to the most
// recently connected page. Callback references are shared by all pages so
// a sink survives reconnects.
type Hub struct {
	opts     Options
	refs     *Refs
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	current   *Conn
	conns     map[*Conn]struct{}
	onConnect []func(ctx context.Context, c *Conn)
}

var (
	_ voice.HostBridge = (*Hub)(nil)
	_ voice.Referencer = (*Hub)(nil)
	_ http.Handler     = (*Hub)(nil)
)

// NewHub creates a hub with no connected page.
func NewHub(opts Options) *Hub {
	opts.applyDefaults()
	return &Hub{
		opts: opts,
		refs: NewRefs(),
		upgrader: websocket.Upgrader{
			CheckOrigin: opts.CheckOrigin,
		},
		conns: make(map[*Conn]struct{}),
	}
}

// OnConnect registers fn to run in its own goroutine whenever a page
// connects. ctx ends when that page disconnects.
func (h *Hub) OnConnect(fn func(ctx context.Context, c *Conn)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, fn)
}

// ServeHTTP upgrades the request and serves the page until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.Logger.Warn("bridge upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	c := NewConn(ws, h.refs, h.opts)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	h.attach(ctx, c)
	defer h.detach(c)

	if err := c.Serve(ctx); err != nil {
		h.opts.Logger.Warn("bridge connection ended", map[string]interface{}{
			"session_id": c.ID(),
			"error":      err.Error(),
		})
	}
}

func (h *Hub) attach(ctx context.Context, c *Conn) {
	h.mu.Lock()
	h.current = c
	h.conns[c] = struct{}{}
	hooks := append([]func(context.Context, *Conn){}, h.onConnect...)
	h.mu.Unlock()

	for _, fn := range hooks {
		go fn(ctx, c)
	}
}

func (h *Hub) detach(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	if h.current == c {
		h.current = nil
		// Fall back to any other page still connected.
		for other := range h.conns {
			h.current = other
			break
		}
	}
}

// Current returns the page calls are routed to, or nil.
func (h *Hub) Current() *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Connected reports whether a page is connected.
func (h *Hub) Connected() bool {
	return h.Current() != nil
}

// Session returns the current page session, or "" without a page.
func (h *Hub) Session() string {
	if c := h.Current(); c != nil {
		return c.Session()
	}
	return ""
}

// EvalBool evaluates expr in the current page.
func (h *Hub) EvalBool(ctx context.Context, expr string) (bool, error) {
	c := h.Current()
	if c == nil {
		return false, errors.HostBridgeError(OpEval, ErrNoPage)
	}
	return c.EvalBool(ctx, expr)
}

// Invoke calls fn in the current page.
func (h *Hub) Invoke(ctx context.Context, fn string, args ...any) error {
	c := h.Current()
	if c == nil {
		return errors.HostBridgeError(OpInvoke+" "+fn, ErrNoPage)
	}
	return c.Invoke(ctx, fn, args...)
}

// Ref registers sink in the shared reference table.
func (h *Hub) Ref(sink voice.CallbackSink) any {
	return h.refs.Ref(sink)
}

// Close disconnects every page.
func (h *Hub) Close() error {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}
