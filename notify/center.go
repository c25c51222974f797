package notify

import (
	"sync"
)

// Notification is a single posted event.
type Notification struct {
	// Name is the event name observers subscribed to.
	Name string
	// Object identifies the sender-specific subject, such as an utterance id.
	Object any
	// Info carries optional event details.
	Info map[string]any
}

// Observer receives notifications. Observers run on the posting goroutine
// and must not block.
type Observer func(Notification)

type registration struct {
	id uint64
	fn Observer
}

// Center dispatches notifications to observers registered by name.
type Center struct {
	mu        sync.RWMutex
	nextID    uint64
	observers map[string][]registration
}

var (
	defaultCenter     *Center
	defaultCenterOnce sync.Once
)

// Default returns the process-wide center.
func Default() *Center {
	defaultCenterOnce.Do(func() {
		defaultCenter = NewCenter()
	})
	return defaultCenter
}

// NewCenter creates an empty center. Tests use private centers; production
// code shares Default.
func NewCenter() *Center {
	return &Center{observers: make(map[string][]registration)}
}

// AddObserver registers fn for name and returns a function that removes it.
// The returned function is safe to call more than once.
func (c *Center) AddObserver(name string, fn Observer) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers[name] = append(c.observers[name], registration{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(name, id) })
	}
}

func (c *Center) remove(name string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	regs := c.observers[name]
	for i, r := range regs {
		if r.id == id {
			regs = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(regs) == 0 {
		delete(c.observers, name)
		return
	}
	c.observers[name] = regs
}

// Post delivers a notification synchronously to every observer of name
// registered at the time of the call.
func (c *Center) Post(name string, object any, info map[string]any) {
	c.mu.RLock()
	regs := c.observers[name]
	c.mu.RUnlock()

	n := Notification{Name: name, Object: object, Info: info}
	for _, r := range regs {
		r.fn(n)
	}
}

// ObserverCount returns the number of observers registered for name.
func (c *Center) ObserverCount(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.observers[name])
}
