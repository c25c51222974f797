package hostbridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kbukum/voicekit/completion"
	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/voice"
)

// ErrDisconnected rejects calls pending when the page connection is lost.
var ErrDisconnected = stderrors.New("hostbridge: page disconnected")

// Options configures page connections.
type Options struct {
	// Timeout bounds one eval or invoke round trip. Defaults to 5 seconds.
	Timeout time.Duration
	// WriteTimeout bounds writing one frame. Defaults to 5 seconds.
	WriteTimeout time.Duration
	// MaxMessageBytes limits inbound frames. Defaults to 1 MiB.
	MaxMessageBytes int64
	// CheckOrigin decides which pages may connect. Nil keeps the websocket
	// library's same-origin check.
	CheckOrigin func(r *http.Request) bool
	// Logger defaults to logger.Get("hostbridge").
	Logger *logger.Logger
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	if o.Logger == nil {
		o.Logger = logger.Get("hostbridge")
	}
}

// Conn is one connected page. It implements voice.HostBridge and
// voice.Referencer.
type Conn struct {
	ws   *websocket.Conn
	opts Options
	refs *Refs
	id   string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*completion.Token[json.RawMessage]
	page    string

	closeOnce sync.Once
	done      chan struct{}
}

var (
	_ voice.HostBridge = (*Conn)(nil)
	_ voice.Referencer = (*Conn)(nil)
)

// NewConn wraps an established websocket. refs may be shared between
// connections; nil creates a private table. Call Serve to start reading.
func NewConn(ws *websocket.Conn, refs *Refs, opts Options) *Conn {
	opts.applyDefaults()
	if refs == nil {
		refs = NewRefs()
	}
	ws.SetReadLimit(opts.MaxMessageBytes)
	return &Conn{
		ws:      ws,
		opts:    opts,
		refs:    refs,
		id:      uuid.NewString(),
		pending: make(map[string]*completion.Token[json.RawMessage]),
		done:    make(chan struct{}),
	}
}

// ID identifies this connection for the lifetime of the page session.
func (c *Conn) ID() string { return c.id }

// Session returns the page session key used by the Injector.
func (c *Conn) Session() string { return c.id }

// Page returns the page identifier announced in the hello frame.
func (c *Conn) Page() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Done is closed when the connection has ended.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Serve reads frames until the connection fails or ctx ends. Every call
// still pending when it returns is rejected with ErrDisconnected.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.Close()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			select {
			case <-c.done:
				return nil
			default:
			}
			return err
		}
		c.handle(f)
	}
}

func (c *Conn) handle(f Frame) {
	switch f.Op {
	case OpResult:
		c.mu.Lock()
		tok := c.pending[f.ID]
		c.mu.Unlock()
		if tok == nil {
			c.opts.Logger.Debug("result for unknown call", map[string]interface{}{"call_id": f.ID})
			return
		}
		if f.Error != "" {
			tok.Reject(stderrors.New(f.Error))
			return
		}
		tok.Resolve(f.Value)
	case OpCallback:
		if !c.refs.dispatch(f.Target, f.Method, f.Args) {
			c.opts.Logger.Warn("callback dropped", map[string]interface{}{
				"target": f.Target,
				"method": f.Method,
			})
		}
	case OpHello:
		c.mu.Lock()
		c.page = f.Page
		c.mu.Unlock()
		c.opts.Logger.Info("page connected", map[string]interface{}{"page": f.Page, "session_id": c.id})
	default:
		c.opts.Logger.Debug("unknown frame", map[string]interface{}{"op": f.Op})
	}
}

// EvalBool evaluates expr in the page and returns its truthiness.
func (c *Conn) EvalBool(ctx context.Context, expr string) (bool, error) {
	value, err := c.call(ctx, Frame{Op: OpEval, Expr: expr})
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

// Invoke calls the named page function and waits for it to return.
func (c *Conn) Invoke(ctx context.Context, fn string, args ...any) error {
	encoded, err := encodeArgs(args)
	if err != nil {
		return errors.HostBridgeError("invoke "+fn, err)
	}
	_, err = c.call(ctx, Frame{Op: OpInvoke, Fn: fn, Args: encoded})
	return err
}

// Ref registers sink and returns a handle the page can call back into.
func (c *Conn) Ref(sink voice.CallbackSink) any {
	return c.refs.Ref(sink)
}

func (c *Conn) call(ctx context.Context, f Frame) (json.RawMessage, error) {
	op := f.Op
	if f.Fn != "" {
		op += " " + f.Fn
	}

	f.ID = uuid.NewString()
	tok := completion.New[json.RawMessage]()

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, errors.HostBridgeError(op, ErrDisconnected)
	default:
	}
	c.pending[f.ID] = tok
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.write(f); err != nil {
		return nil, errors.HostBridgeError(op, err)
	}

	value, err := tok.Await(ctx, c.opts.Timeout)
	switch {
	case err == nil:
		return value, nil
	case stderrors.Is(err, completion.ErrTimedOut):
		return nil, errors.Timeout("hostbridge " + op)
	default:
		return nil, errors.HostBridgeError(op, err)
	}
}

func (c *Conn) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteJSON(f)
}

// Close ends the connection and rejects pending calls. It is safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		for _, tok := range c.pending {
			tok.Reject(ErrDisconnected)
		}
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.opts.WriteTimeout))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
