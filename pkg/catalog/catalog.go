package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aretw0/vellum/internal/atomicfile"
)

// index is the committed, searchable state of the catalog.
type index struct {
	schema   Schema
	docs     map[string]Document
	postings map[string]map[string]keySet // field -> term -> keys
}

func newIndex(schema Schema) *index {
	return &index{
		schema:   schema,
		docs:     make(map[string]Document),
		postings: make(map[string]map[string]keySet),
	}
}

func (ix *index) field(name string) (Field, error) {
	f, ok := ix.schema[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if !f.Indexed {
		return Field{}, fmt.Errorf("%w: %s", ErrNotIndexed, name)
	}
	return f, nil
}

func (ix *index) all() keySet {
	out := make(keySet, len(ix.docs))
	for k := range ix.docs {
		out.add(k)
	}
	return out
}

func (ix *index) insert(doc Document) {
	key := doc.Key()
	ix.remove(key)
	ix.docs[key] = doc
	for name, v := range doc {
		f := ix.schema[name]
		if !f.Indexed {
			continue
		}
		terms := ix.postings[name]
		if terms == nil {
			terms = make(map[string]keySet)
			ix.postings[name] = terms
		}
		for _, term := range f.terms(v) {
			keys := terms[term]
			if keys == nil {
				keys = keySet{}
				terms[term] = keys
			}
			keys.add(key)
		}
	}
}

func (ix *index) remove(key string) {
	doc, ok := ix.docs[key]
	if !ok {
		return
	}
	delete(ix.docs, key)
	for name, v := range doc {
		f := ix.schema[name]
		if !f.Indexed {
			continue
		}
		terms := ix.postings[name]
		for _, term := range f.terms(v) {
			delete(terms[term], key)
			if len(terms[term]) == 0 {
				delete(terms, term)
			}
		}
	}
}

// op is a buffered index mutation. A nil doc unindexes key.
type op struct {
	key string
	doc Document
}

// Catalog is a schema-typed inverted index over resource documents.
//
// IndexDocument and UnindexDocument are buffered: searches only see the
// state as of the last SaveChanges.
type Catalog struct {
	mu      sync.RWMutex
	schema  Schema
	path    string
	logger  *slog.Logger
	ix      *index
	pending []op
}

// Config holds the optional settings of a catalog.
type Config struct {
	// Path is the JSON file the catalog persists to. Empty keeps it in memory.
	Path   string
	Logger *slog.Logger
}

// New creates an empty catalog.
func New(schema Schema, cfg Config) *Catalog {
	s := make(Schema, len(schema)+1)
	_ = s.Merge(schema)
	if _, ok := s[KeyField]; !ok {
		s[KeyField] = Field{Type: Keyword, Indexed: true, Stored: true}
	}
	return &Catalog{
		schema: s,
		path:   cfg.Path,
		logger: cfg.Logger,
		ix:     newIndex(s),
	}
}

// Open creates a catalog and loads the documents persisted at cfg.Path, if any.
func Open(schema Schema, cfg Config) (*Catalog, error) {
	c := New(schema, cfg)
	if cfg.Path == "" {
		return c, nil
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Schema returns the schema of the catalog.
func (c *Catalog) Schema() Schema {
	return c.schema
}

// IndexDocument queues doc for indexing, replacing any document with the same key.
func (c *Catalog) IndexDocument(doc Document) error {
	n, err := normalizeDocument(c.schema, doc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pending = append(c.pending, op{key: n.Key(), doc: n})
	c.mu.Unlock()
	return nil
}

// UnindexDocument queues the removal of the document with the given key.
func (c *Catalog) UnindexDocument(key string) {
	c.mu.Lock()
	c.pending = append(c.pending, op{key: key})
	c.mu.Unlock()
}

// Pending reports the number of buffered mutations.
func (c *Catalog) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// SaveChanges applies the buffered mutations and persists the catalog.
func (c *Catalog) SaveChanges() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range c.pending {
		if o.doc == nil {
			c.ix.remove(o.key)
		} else {
			c.ix.insert(o.doc)
		}
	}
	applied := len(c.pending)
	c.pending = nil

	if c.logger != nil {
		c.logger.Debug("catalog changes applied", "ops", applied, "documents", len(c.ix.docs))
	}
	return c.persist()
}

// AbortChanges drops the buffered mutations.
func (c *Catalog) AbortChanges() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// Reset clears the committed documents and the buffer, typically before a rebuild.
func (c *Catalog) Reset() {
	c.mu.Lock()
	c.ix = newIndex(c.schema)
	c.pending = nil
	c.mu.Unlock()
}

// Rebuild replaces every committed document with docs and persists the
// result. Nothing changes when one of the documents is rejected.
func (c *Catalog) Rebuild(docs []Document) error {
	ix := newIndex(c.schema)
	for _, doc := range docs {
		n, err := normalizeDocument(c.schema, doc)
		if err != nil {
			return fmt.Errorf("%s: %w", doc.Key(), err)
		}
		ix.insert(n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ix = ix
	c.pending = nil
	if c.logger != nil {
		c.logger.Debug("catalog rebuilt", "documents", len(ix.docs))
	}
	return c.persist()
}

// Len returns the number of committed documents.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ix.docs)
}

// Search evaluates q against the committed documents.
func (c *Catalog) Search(q Query) (*ResultSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, err := q.eval(c.ix)
	if err != nil {
		return nil, err
	}
	return &ResultSet{catalog: c, keys: keys}, nil
}

// snapshot is the persisted form of the catalog.
type snapshot struct {
	Version   int        `json:"version"`
	Documents []Document `json:"documents"`
}

const snapshotVersion = 1

func (c *Catalog) persist() error {
	if c.path == "" {
		return nil
	}
	snap := snapshot{Version: snapshotVersion, Documents: make([]Document, 0, len(c.ix.docs))}
	for _, key := range sortedKeys(c.ix.all()) {
		snap.Documents = append(snap.Documents, c.ix.docs[key])
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := atomicfile.Write(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	var snap snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode catalog %s: %w", c.path, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported catalog version %d", snap.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, raw := range snap.Documents {
		doc, err := normalizeDocument(c.schema, raw)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		c.ix.insert(doc)
	}
	if c.logger != nil {
		c.logger.Debug("catalog loaded", "path", c.path, "documents", len(c.ix.docs))
	}
	return nil
}
