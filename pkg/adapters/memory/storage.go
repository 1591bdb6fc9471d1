// Package memory provides in-memory implementations of the store
// collaborators, for tests and ephemeral stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/vellum/pkg/core"
)

// Storage implements core.Storage over a map. Operations are queued in an
// overlay until Flush.
type Storage struct {
	mu    sync.RWMutex
	files map[string][]byte
	// queued writes and deletions; a key is in at most one of them
	pending map[string][]byte
	deleted map[string]bool
}

// NewStorage returns an empty storage.
func NewStorage() *Storage {
	return &Storage{
		files:   make(map[string][]byte),
		pending: make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

func (s *Storage) lookup(key string) ([]byte, bool) {
	if s.deleted[key] {
		return nil, false
	}
	if data, ok := s.pending[key]; ok {
		return data, true
	}
	data, ok := s.files[key]
	return data, ok
}

func (s *Storage) put(key string, data []byte) {
	delete(s.deleted, key)
	s.pending[key] = append([]byte(nil), data...)
}

func (s *Storage) remove(key string) {
	delete(s.pending, key)
	s.deleted[key] = true
}

// Exists implements core.Storage.
func (s *Storage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(key)
	return ok, nil
}

// Read implements core.Storage.
func (s *Storage) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Write implements core.Storage.
func (s *Storage) Write(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, data)
	return nil
}

// Delete implements core.Storage.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key)
	return nil
}

// Copy implements core.Storage.
func (s *Storage) Copy(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.lookup(src)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, src)
	}
	s.put(dst, data)
	return nil
}

// Move implements core.Storage.
func (s *Storage) Move(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.lookup(src)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, src)
	}
	s.put(dst, data)
	s.remove(src)
	return nil
}

// List implements core.Storage.
func (s *Storage) List(_ context.Context, dir string) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := ""
	if dir != "" {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}
	seen := make(map[string]bool) // name -> is dir
	visit := func(key string) {
		if _, ok := s.lookup(key); !ok || !strings.HasPrefix(key, prefix) {
			return
		}
		rest := strings.TrimPrefix(key, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		seen[name] = seen[name] || isDir
	}
	for key := range s.files {
		visit(key)
	}
	for key := range s.pending {
		visit(key)
	}

	entries := make([]core.Entry, 0, len(seen))
	for name, isDir := range seen {
		entries = append(entries, core.Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Flush implements core.Storage.
func (s *Storage) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.deleted {
		delete(s.files, key)
	}
	for key, data := range s.pending {
		s.files[key] = data
	}
	s.pending = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	return nil
}

// Discard implements core.Storage.
func (s *Storage) Discard(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	return nil
}

// Snapshot returns a copy of the flushed files.
func (s *Storage) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.files))
	for k, v := range s.files {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// restore replaces the flushed files, dropping the queue.
func (s *Storage) restore(files map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string][]byte, len(files))
	for k, v := range files {
		s.files[k] = append([]byte(nil), v...)
	}
	s.pending = make(map[string][]byte)
	s.deleted = make(map[string]bool)
}

var _ core.Storage = (*Storage)(nil)
