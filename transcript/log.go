package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voicekit/logger"
)

// DefaultCapacity is the number of entries a Log keeps.
const DefaultCapacity = 50

// Kind classifies a recorded event.
type Kind string

const (
	KindPartial Kind = "partial"
	KindFinal   Kind = "final"
	KindError   Kind = "error"
	KindEnd     Kind = "end"
)

// Entry is one recorded recognition event.
type Entry struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	Text string    `json:"text,omitempty"`
	At   time.Time `json:"at"`
}

// Log is a bounded, concurrency-safe ring of recognition events.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	now     func() time.Time
	log     *logger.Logger

	subMu sync.RWMutex
	subs  []func(Entry)
}

// NewLog creates a Log holding up to capacity entries. A non-positive
// capacity uses DefaultCapacity.
func NewLog(capacity int, log *logger.Logger) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = logger.Get("transcript")
	}
	return &Log{entries: make([]Entry, capacity), now: time.Now, log: log}
}

// OnSpeechResult records a partial or final transcript.
func (l *Log) OnSpeechResult(text string, isFinal bool) {
	kind := KindPartial
	if isFinal {
		kind = KindFinal
		l.log.Debug("final transcript", logger.Fields("chars", len(text)))
	}
	l.add(kind, text)
}

// OnSpeechError records a recognition error.
func (l *Log) OnSpeechError(message string) {
	l.log.Warn("recognition error reported", logger.Fields(logger.FieldError, message))
	l.add(KindError, message)
}

// OnSpeechEnd records the end of a recognition session.
func (l *Log) OnSpeechEnd() {
	l.add(KindEnd, "")
}

// Subscribe registers fn to receive every entry after it is recorded.
// fn runs on the recognizer's callback goroutine and must not block.
func (l *Log) Subscribe(fn func(Entry)) {
	l.subMu.Lock()
	l.subs = append(l.subs, fn)
	l.subMu.Unlock()
}

func (l *Log) add(kind Kind, text string) {
	l.mu.Lock()
	e := Entry{ID: uuid.NewString(), Kind: kind, Text: text, At: l.now()}
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()

	l.subMu.RLock()
	defer l.subMu.RUnlock()
	for _, fn := range l.subs {
		fn(e)
	}
}

// Recent returns the recorded entries, oldest first.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]Entry(nil), l.entries[:l.next]...)
	}
	out := make([]Entry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}
