package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/kbukum/voicekit/logger"
)

// LogEntry is one decoded JSON log line.
type LogEntry map[string]any

// Level returns the entry level.
func (e LogEntry) Level() string {
	s, _ := e["level"].(string)
	return s
}

// Message returns the entry message.
func (e LogEntry) Message() string {
	s, _ := e["message"].(string)
	return s
}

// LogCapture collects JSON log output for assertions.
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// NewLogCapture returns a capture and a debug-level JSON logger writing to it.
func NewLogCapture(component string) (*LogCapture, *logger.Logger) {
	c := &LogCapture{}
	cfg := &logger.Config{Level: "debug", Format: "json"}
	return c, logger.NewWithWriter(cfg, "test", c).WithComponent(component)
}

// Entries decodes every captured line.
func (c *LogCapture) Entries() []LogEntry {
	c.mu.Lock()
	data := append([]byte(nil), c.buf.Bytes()...)
	c.mu.Unlock()

	var out []LogEntry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var e LogEntry
		if json.Unmarshal(sc.Bytes(), &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries at level whose message contains substr.
func (c *LogCapture) Count(level, substr string) int {
	n := 0
	for _, e := range c.Entries() {
		if e.Level() == level && strings.Contains(e.Message(), substr) {
			n++
		}
	}
	return n
}
