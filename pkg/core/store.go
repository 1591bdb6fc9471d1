package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the collaborators of a Store.
type Config struct {
	Storage  Storage
	Catalog  Catalog
	Registry *Registry
	// VCS may be nil, in which case commits are not versioned.
	VCS    VersionControl
	Logger *slog.Logger
	// RootFormat is the class of the root resource. Defaults to "folder".
	RootFormat      string
	DefaultLanguage string
	// Clock overrides time.Now for timestamps.
	Clock func() time.Time
}

type txState int

const (
	stateIdle txState = iota
	stateOpen
	stateCommitting
	stateAborting
)

func (s txState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateCommitting:
		return "committing"
	case stateAborting:
		return "aborting"
	}
	return "idle"
}

// Store is the transactional resource tree. It keeps the storage, the
// version control history and the catalog in step through one implicit
// transaction that ends with Commit or AbortChanges.
//
// A Store has no internal locking: callers serialize access.
type Store struct {
	storage         Storage
	vcs             VersionControl
	catalog         Catalog
	registry        *Registry
	logger          *slog.Logger
	rootFormat      string
	defaultLanguage string
	now             func() time.Time

	changes *ChangeSet
	cache   map[string]*Resource
	// dropped holds the storage keys of removed resources, staged as deletions.
	dropped map[string][]string
	state   txState
}

// NewStore creates a store over the given collaborators.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Storage == nil {
		return nil, errors.New("store requires a storage")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("store requires a catalog")
	}
	if cfg.Registry == nil {
		return nil, errors.New("store requires a registry")
	}
	s := &Store{
		storage:         cfg.Storage,
		vcs:             cfg.VCS,
		catalog:         cfg.Catalog,
		registry:        cfg.Registry,
		logger:          cfg.Logger,
		rootFormat:      cfg.RootFormat,
		defaultLanguage: cfg.DefaultLanguage,
		now:             cfg.Clock,
		changes:         NewChangeSet(),
		cache:           make(map[string]*Resource),
		dropped:         make(map[string][]string),
	}
	if s.vcs == nil {
		s.vcs = nopVCS{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.rootFormat == "" {
		s.rootFormat = "folder"
	}
	if s.defaultLanguage == "" {
		s.defaultLanguage = "en"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if _, err := s.registry.Get(s.rootFormat); err != nil {
		return nil, fmt.Errorf("root class: %w", err)
	}
	return s, nil
}

// Changes returns the change set of the open transaction.
func (s *Store) Changes() *ChangeSet { return s.changes }

// Registry returns the class registry.
func (s *Store) Registry() *Registry { return s.registry }

// Catalog returns the search index.
func (s *Store) Catalog() Catalog { return s.catalog }

// Init creates the root resource when the tree is empty. It reports whether
// the root was created; the caller commits it.
func (s *Store) Init(ctx context.Context) (bool, error) {
	ok, err := s.storage.Exists(ctx, metadataKey("/"))
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	class, err := s.registry.Get(s.rootFormat)
	if err != nil {
		return false, err
	}
	root := s.newResource("/", class, NewMetadata(class.ID, class.Version))
	s.stampCreation(root)
	if err := s.changes.AddResource(root); err != nil {
		return false, err
	}
	s.cache["/"] = root
	return true, nil
}

// GetResource returns the resource at p, including resources created in the
// open transaction. Removed resources are not found.
func (s *Store) GetResource(ctx context.Context, p string) (*Resource, error) {
	p = CleanPath(p)
	if s.changes.IsRemoved(p) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if r, ok := s.cache[p]; ok {
		return r, nil
	}

	data, err := s.storage.Read(ctx, metadataKey(p))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	meta, err := UnmarshalMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	class, err := s.registry.Get(meta.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	r := s.newResource(p, class, meta)
	s.cache[p] = r
	return r, nil
}

// Exists reports whether a resource lives at p.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.GetResource(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) newResource(p string, class *Class, meta *Metadata) *Resource {
	return &Resource{
		store:    s,
		path:     p,
		class:    class,
		meta:     meta,
		handlers: make(map[string]*Handler),
	}
}

// childNames lists the names of the children of p: persisted ones not
// removed, plus those created in the open transaction.
func (s *Store) childNames(ctx context.Context, p string) ([]string, error) {
	entries, err := s.storage.List(ctx, dirKey(p))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, err)
	}
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, MetadataSuffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name, MetadataSuffix)
		if ValidateName(name) != nil {
			continue
		}
		if s.changes.IsRemoved(path.Join(p, name)) {
			continue
		}
		seen[name] = struct{}{}
	}
	for _, r := range s.changes.pending() {
		if r.path != "/" && ParentPath(r.path) == p {
			seen[r.Name()] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Children returns the direct children of the folder at p, sorted by name.
func (s *Store) Children(ctx context.Context, p string) ([]*Resource, error) {
	r, err := s.GetResource(ctx, p)
	if err != nil {
		return nil, err
	}
	if !r.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, r.path)
	}
	return s.children(ctx, r)
}

func (s *Store) children(ctx context.Context, r *Resource) ([]*Resource, error) {
	if !r.IsFolder() {
		return nil, nil
	}
	names, err := s.childNames(ctx, r.path)
	if err != nil {
		return nil, err
	}
	out := make([]*Resource, 0, len(names))
	for _, name := range names {
		c, err := s.GetResource(ctx, path.Join(r.path, name))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// walk calls fn for r and every descendant, parents first.
func (s *Store) walk(ctx context.Context, r *Resource, fn func(*Resource) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	children, err := s.children(ctx, r)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.walk(ctx, c, fn); err != nil {
			return err
		}
	}
	return nil
}

// subtree returns r and its descendants, parents first.
func (s *Store) subtree(ctx context.Context, r *Resource) ([]*Resource, error) {
	var out []*Resource
	err := s.walk(ctx, r, func(d *Resource) error {
		out = append(out, d)
		return nil
	})
	return out, err
}

// Traverse calls fn for the resource at p and every descendant, parents first.
func (s *Store) Traverse(ctx context.Context, p string, fn func(*Resource) error) error {
	r, err := s.GetResource(ctx, p)
	if err != nil {
		return err
	}
	return s.walk(ctx, r, fn)
}

func (s *Store) stampCreation(r *Resource) {
	r.assign(PropUUID, &Property{Kind: Simple, Value: uuid.NewString()})
	r.assign(PropCTime, &Property{Kind: Simple, Value: s.timestamp()})
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// transactionState reports the commit protocol state.
func (s *Store) transactionState() txState {
	if s.state == stateIdle && !s.changes.IsEmpty() {
		return stateOpen
	}
	return s.state
}
