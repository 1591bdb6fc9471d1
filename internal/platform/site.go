package platform

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/vellum/pkg/adapters/fs"
	watchsource "github.com/aretw0/vellum/pkg/adapters/lifecycle"
	"github.com/aretw0/vellum/pkg/catalog"
	"github.com/aretw0/vellum/pkg/core"
	"github.com/aretw0/vellum/pkg/git"
)

// Site is an opened resource database: the store and the components wired
// around it. Its methods serialize access to the store, each Update being
// one transaction.
type Site struct {
	path    string
	logger  *slog.Logger
	storage *fs.Storage
	catalog *catalog.Catalog
	vcs     *git.Backend
	store   *core.Store

	mu sync.Mutex
}

// Path returns the absolute site directory.
func (s *Site) Path() string { return s.path }

// Store returns the underlying store. Callers using it directly bypass the
// site lock.
func (s *Site) Store() *core.Store { return s.store }

// Catalog returns the site catalog.
func (s *Site) Catalog() *catalog.Catalog { return s.catalog }

// Storage returns the file storage rooted at the site directory.
func (s *Site) Storage() *fs.Storage { return s.storage }

// Versioned reports whether commits go to git.
func (s *Site) Versioned() bool { return s.vcs != nil }

// Update runs fn as one transaction: its changes are committed when it
// returns nil and aborted otherwise.
func (s *Site) Update(ctx context.Context, fn func(ctx context.Context, store *core.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.WithTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, s.store)
	})
}

// View runs fn for reading. Anything fn changes is discarded.
func (s *Site) View(ctx context.Context, fn func(ctx context.Context, store *core.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(ctx, s.store)
	if !s.store.Changes().IsEmpty() {
		s.logger.Warn("discarding changes made in a read-only view")
		err = errors.Join(err, s.store.AbortChanges(ctx))
	}
	return err
}

// Reindex rebuilds the catalog from the files.
func (s *Site) Reindex(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Reindex(ctx)
}

// Check reports the uncommitted files of the working tree.
func (s *Site) Check(ctx context.Context) ([]core.FileStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Check(ctx)
}

// Watch follows the external edits of the site files until ctx is done,
// rebuilding the catalog after each batch. onEvent, if not nil, is called
// for every event once the catalog is current.
func (s *Site) Watch(ctx context.Context, pattern string, onEvent func(fs.Event)) error {
	w, err := fs.NewWatcher(s.storage, fs.WatchConfig{
		Pattern: pattern,
		Logger:  s.logger,
		ErrorHandler: func(err error) {
			s.logger.Error("watcher error", "error", err)
		},
	})
	if err != nil {
		return err
	}
	source := watchsource.NewSource(w)
	if err := source.Start(ctx); err != nil {
		return err
	}
	events := source.Events()
	for {
		var ev any
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-events:
			if !ok {
				return nil
			}
			ev = next
		}
		e, ok := ev.(fs.Event)
		if !ok {
			continue
		}
		n, err := s.Reindex(ctx)
		if err != nil {
			s.logger.Error("reindex after external change failed", "event", e.String(), "error", err)
			continue
		}
		s.logger.Debug("catalog refreshed", "event", e.String(), "documents", n)
		if onEvent != nil {
			onEvent(e)
		}
	}
}

// SiteState exposes the state of the site components.
type SiteState struct {
	Path      string          `json:"path"`
	Versioned bool            `json:"versioned"`
	Store     core.StoreState `json:"store"`
	Catalog   any             `json:"catalog"`
	Storage   any             `json:"storage"`
}

// State implements introspection.Introspectable.
func (s *Site) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SiteState{
		Path:      s.path,
		Versioned: s.Versioned(),
		Store:     s.store.State().(core.StoreState),
		Catalog:   s.catalog.State(),
		Storage:   s.storage.State(),
	}
}

// ComponentType implements introspection.Component.
func (s *Site) ComponentType() string {
	return "site"
}

var _ introspection.Introspectable = (*Site)(nil)
var _ introspection.Component = (*Site)(nil)
