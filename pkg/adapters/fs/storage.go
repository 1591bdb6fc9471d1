// Package fs stores the resource tree in a directory of plain files.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/vellum/internal/atomicfile"
	"github.com/aretw0/vellum/pkg/core"
)

// DefaultSystemDir holds the catalog, locks and other private files.
const DefaultSystemDir = ".vellum"

// Config holds the configuration of the filesystem storage.
type Config struct {
	Path      string
	SystemDir string // e.g. ".vellum"
	Logger    *slog.Logger
	// FileMode is the permission of written files, 0644 when zero.
	FileMode os.FileMode
}

// Storage implements core.Storage over a directory. Writes and deletions are
// queued in memory and reach the disk on Flush.
type Storage struct {
	Path   string
	config Config

	mu      sync.RWMutex
	pending map[string][]byte
	deleted map[string]bool
	flushes int
}

// NewStorage creates a storage rooted at cfg.Path.
func NewStorage(cfg Config) *Storage {
	if cfg.SystemDir == "" {
		cfg.SystemDir = DefaultSystemDir
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}
	cfg.Path = filepath.Clean(cfg.Path)
	return &Storage{
		Path:    cfg.Path,
		config:  cfg,
		pending: make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// SystemDir returns the name of the private directory.
func (s *Storage) SystemDir() string { return s.config.SystemDir }

// abs resolves a storage key to a path below the root.
func (s *Storage) abs(key string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.Path, filepath.FromSlash(key)), nil
}

// hidden reports whether a key belongs to the system or git directories,
// or is a leftover temp file.
func (s *Storage) hidden(key string) bool {
	first, _, _ := strings.Cut(key, "/")
	if first == s.config.SystemDir || first == ".git" {
		return true
	}
	return strings.HasPrefix(filepath.Base(key), atomicfile.TempFilePrefix)
}

func (s *Storage) lookup(key string) ([]byte, bool, error) {
	if s.deleted[key] {
		return nil, false, nil
	}
	if data, ok := s.pending[key]; ok {
		return data, true, nil
	}
	p, err := s.abs(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Storage) put(key string, data []byte) error {
	if _, err := s.abs(key); err != nil {
		return err
	}
	delete(s.deleted, key)
	s.pending[key] = append([]byte(nil), data...)
	return nil
}

func (s *Storage) remove(key string) {
	delete(s.pending, key)
	s.deleted[key] = true
}

// Exists implements core.Storage.
func (s *Storage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok, err := s.lookup(key)
	return ok, err
}

// Read implements core.Storage.
func (s *Storage) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok, err := s.lookup(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Write implements core.Storage.
func (s *Storage) Write(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(key, data)
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
	data, ok, err := s.lookup(src)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, src)
	}
	return s.put(dst, data)
}

// Move implements core.Storage.
func (s *Storage) Move(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok, err := s.lookup(src)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, src)
	}
	if err := s.put(dst, data); err != nil {
		return err
	}
	s.remove(src)
	return nil
}

// List implements core.Storage. The system and git directories are never
// listed.
func (s *Storage) List(_ context.Context, dir string) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := ""
	if dir != "" {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}
	p := s.Path
	if dir != "" {
		var err error
		if p, err = s.abs(strings.TrimSuffix(dir, "/")); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool) // name -> is dir
	entries, err := os.ReadDir(p)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		key := prefix + e.Name()
		if s.hidden(key) || (!e.IsDir() && s.deleted[key]) {
			continue
		}
		seen[e.Name()] = e.IsDir()
	}
	for key := range s.pending {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name, _, isDir := strings.Cut(strings.TrimPrefix(key, prefix), "/")
		seen[name] = seen[name] || isDir
	}

	out := make([]core.Entry, 0, len(seen))
	for name, isDir := range seen {
		out = append(out, core.Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Flush implements core.Storage. Deletions are applied first, then writes;
// directories left empty are removed. Operations that fail stay queued.
func (s *Storage) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for key := range s.deleted {
		p, err := s.abs(key)
		if err == nil {
			err = os.Remove(p)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
			continue
		}
		s.prune(filepath.Dir(p))
		delete(s.deleted, key)
	}
	for key, data := range s.pending {
		p, err := s.abs(key)
		if err == nil {
			err = atomicfile.Write(p, data, s.config.FileMode)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		delete(s.pending, key)
	}
	s.flushes++

	if err := errors.Join(errs...); err != nil {
		return err
	}
	if s.config.Logger != nil {
		s.config.Logger.Debug("storage flushed", "path", s.Path)
	}
	return nil
}

// prune removes empty directories from dir up to, excluding, the root.
func (s *Storage) prune(dir string) {
	for dir != s.Path && strings.HasPrefix(dir, s.Path) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Discard implements core.Storage.
func (s *Storage) Discard(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	return nil
}

var _ core.Storage = (*Storage)(nil)
