// Package logging provides a registry of named slog loggers.
//
// Loggers are created once per name and cached for the lifetime of the
// registry. Each named logger carries a "logger_name" attribute where the
// dotted name is rendered as " a -> b -> c ", which keeps sink output readable
// when names follow package paths.
package logging

import (
	"log/slog"
	"strings"
	"sync"
)

// NameKey is the attribute key used to bind a logger name.
const NameKey = "logger_name"

// Registry caches named loggers built on top of a single handler.
type Registry struct {
	root *slog.Logger

	mu      sync.RWMutex
	loggers map[string]*slog.Logger
}

// NewRegistry returns a registry whose loggers write to h.
// A nil handler falls back to the handler of slog.Default().
func NewRegistry(h slog.Handler) *Registry {
	if h == nil {
		h = slog.Default().Handler()
	}
	return &Registry{
		root:    slog.New(h),
		loggers: make(map[string]*slog.Logger),
	}
}

// Get returns the logger bound to name, creating it on first use.
// An empty name returns the root logger.
func (r *Registry) Get(name string) *slog.Logger {
	if name == "" {
		return r.root
	}
	r.mu.RLock()
	l, ok := r.loggers[name]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[name]; ok {
		return l
	}
	l = r.root.With(NameKey, Humanize(name))
	r.loggers[name] = l
	return l
}

// Len reports how many named loggers have been created.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loggers)
}

// Humanize renders a dotted logger name as " a -> b -> c ".
func Humanize(name string) string {
	return " " + strings.ReplaceAll(name, ".", " -> ") + " "
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(nil)
})

// Default returns the process registry. It is built on first call over the
// handler of slog.Default() at that moment.
func Default() *Registry {
	return defaultRegistry()
}
