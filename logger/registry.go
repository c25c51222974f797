package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// registry caches component loggers and their level overrides.
var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
	levels:  make(map[string]zerolog.Level),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
	levels  map[string]zerolog.Level
}

// Register stores a logger under a component name, replacing any cached one.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get returns the logger for a component: the global logger tagged with the
// component name, at the level configured in logging.components if any.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if l, ok := registry.loggers[name]; ok {
		return l
	}
	l = GetGlobalLogger().WithComponent(name)
	if lvl, ok := registry.levels[name]; ok {
		l.logger = l.logger.Level(lvl)
	}
	registry.loggers[name] = l
	return l
}

func resetRegistry(levels map[string]zerolog.Level) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers = make(map[string]*Logger)
	registry.levels = levels
}
