package sse

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kbukum/voicekit/logger"
)

// clientBuffer is the number of events queued per client before drops.
const clientBuffer = 64

// Event is one named server-sent event with a JSON payload.
type Event struct {
	Name string
	Data []byte
}

// Client is one connected stream.
type Client struct {
	id     string
	events chan Event
	once   sync.Once
}

// NewClient creates a client with a bounded event queue.
func NewClient(id string) *Client {
	return &Client{id: id, events: make(chan Event, clientBuffer)}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Events returns the channel for receiving events.
func (c *Client) Events() <-chan Event { return c.events }

// Send queues ev. It returns false and drops the event when the client is
// too slow.
func (c *Client) Send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Close closes the client's event channel. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.events) })
}

// Publisher is implemented by Hub.
type Publisher interface {
	Publish(pattern, name string, v any) error
}

// Hub manages stream clients and routes events to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
	log        *logger.Logger
}

type message struct {
	pattern string
	event   Event
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub. Run must be started before clients register.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get("sse")
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("stream client registered", logger.Fields("client_id", client.id, "total_clients", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("stream client unregistered", logger.Fields("client_id", client.id, "total_clients", n))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop closes every client and ends Run. Safe to call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
}

// Register adds a client. After Stop the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish marshals v and sends it as event name to every client whose id
// matches pattern (glob syntax, e.g. "transcripts:*").
func (h *Hub) Publish(pattern, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: encoding %s event: %w", name, err)
	}
	select {
	case h.broadcast <- message{pattern: pattern, event: Event{Name: name, Data: data}}:
	case <-h.done:
	}
	return nil
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		matched, err := filepath.Match(msg.pattern, id)
		if err != nil {
			h.log.Error("invalid stream pattern", logger.MergeWithError(logger.Fields("pattern", msg.pattern), err))
			return
		}
		if matched && !client.Send(msg.event) {
			h.log.Warn("stream client too slow, event dropped", logger.Fields("client_id", id, "event", msg.event.Name))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the ids of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
