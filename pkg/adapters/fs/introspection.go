package fs

import (
	"github.com/aretw0/introspection"
)

// StorageState exposes internal state for observability.
type StorageState struct {
	Path           string `json:"path"`
	SystemDir      string `json:"system_dir"`
	PendingWrites  int    `json:"pending_writes"`
	PendingDeletes int    `json:"pending_deletes"`
	Flushes        int    `json:"flushes"`
}

// State implements introspection.Introspectable.
func (s *Storage) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StorageState{
		Path:           s.Path,
		SystemDir:      s.config.SystemDir,
		PendingWrites:  len(s.pending),
		PendingDeletes: len(s.deleted),
		Flushes:        s.flushes,
	}
}

// ComponentType implements introspection.Component.
func (s *Storage) ComponentType() string {
	return "storage"
}

// WatcherState exposes the watcher for observability.
type WatcherState struct {
	Pattern string `json:"pattern"`
	Active  bool   `json:"active"`
	Events  int64  `json:"events"`
}

// State implements introspection.Introspectable.
func (w *Watcher) State() any {
	return WatcherState{
		Pattern: w.config.Pattern,
		Active:  w.active.Load(),
		Events:  w.events.Load(),
	}
}

// ComponentType implements introspection.Component.
func (w *Watcher) ComponentType() string {
	return "watcher"
}

var (
	_ introspection.Introspectable = (*Storage)(nil)
	_ introspection.Component      = (*Storage)(nil)
	_ introspection.Introspectable = (*Watcher)(nil)
	_ introspection.Component      = (*Watcher)(nil)
)
