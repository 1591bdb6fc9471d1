package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/vellum/pkg/catalog"
)

// CommitData is what BeforeCommit prepares for SaveChanges.
type CommitData struct {
	// Files are the storage keys touched by the transaction.
	Files     []string
	Author    Author
	Message   string
	Documents []catalog.Document
}

// BeforeCommit closes the open transaction: it rewrites the links to moved
// resources, stamps the modified resources, queues their metadata in
// storage, unindexes the removed paths and computes the new documents.
func (s *Store) BeforeCommit(ctx context.Context) (*CommitData, error) {
	s.state = stateCommitting

	if err := s.rewriteMovedLinks(ctx); err != nil {
		return nil, err
	}

	data := &CommitData{
		Author:  AuthorFrom(ctx),
		Message: ChangeReason(ctx),
	}

	for _, p := range s.changes.Removed() {
		s.catalog.UnindexDocument(p)
	}
	// A dropped path may have been created again in the same transaction;
	// its old files are staged either way.
	for _, files := range s.dropped {
		data.Files = append(data.Files, files...)
	}

	now := s.timestamp()
	for _, r := range s.changes.pending() {
		r.assign(PropMTime, &Property{Kind: Simple, Value: now})
		r.assign(PropLastAuthor, &Property{Kind: Simple, Value: data.Author.String()})

		raw, err := MarshalMetadata(r.meta)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", r.path, err)
		}
		key := metadataKey(r.path)
		if err := s.storage.Write(ctx, key, raw); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", key, err)
		}
		data.Files = append(data.Files, key)
		for _, name := range r.class.Handlers {
			if h, ok := r.handlers[name]; ok && h.dirty {
				data.Files = append(data.Files, h.key)
			}
		}
	}

	// A second pass: folder sizes depend on the whole change set.
	for _, r := range s.changes.pending() {
		doc, err := s.Document(ctx, r)
		if err != nil {
			return nil, err
		}
		data.Documents = append(data.Documents, doc)
	}

	slices.Sort(data.Files)
	data.Files = slices.Compact(data.Files)
	return data, nil
}

// rewriteMovedLinks updates the resources linking into a moved subtree.
// Candidates come from the catalog and from the pending resources.
func (s *Store) rewriteMovedLinks(ctx context.Context) error {
	moves := s.changes.Moves()
	if len(moves) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var candidates []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}
	for from := range moves {
		q := catalog.Or(catalog.Phrase("links", from), catalog.Prefix("links", from+"/"))
		rs, err := s.catalog.Search(q)
		if err != nil {
			return fmt.Errorf("link query for %s: %w", from, err)
		}
		for _, p := range rs.Keys() {
			// Catalog keys are committed paths.
			p, _ = movedPath(p, moves)
			add(p)
		}
	}
	for _, r := range s.changes.pending() {
		add(r.path)
	}
	slices.Sort(candidates)

	for _, p := range candidates {
		r, err := s.GetResource(ctx, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if r.rewriteLinks(moves) {
			if err := s.changes.ChangeResource(r); err != nil {
				return err
			}
			s.logger.Debug("links rewritten", "path", r.path)
		}
	}
	return nil
}

// SaveChanges makes the prepared transaction durable: storage first, then
// one version control commit, then the catalog. A catalog failure leaves
// the content committed and returns an error wrapping ErrIndexStale.
func (s *Store) SaveChanges(ctx context.Context, data *CommitData) error {
	if err := s.storage.Flush(ctx); err != nil {
		return fmt.Errorf("failed to persist content: %w", err)
	}
	if len(data.Files) > 0 {
		if err := s.vcs.Commit(ctx, data.Files, data.Author, data.Message); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
	}

	removed := s.changes.Removed()
	s.finish()
	for _, p := range removed {
		delete(s.cache, p)
	}

	for _, doc := range data.Documents {
		if err := s.catalog.IndexDocument(doc); err != nil {
			s.catalog.AbortChanges()
			return fmt.Errorf("%w: %w", ErrIndexStale, err)
		}
	}
	if err := s.catalog.SaveChanges(); err != nil {
		return fmt.Errorf("%w: %w", ErrIndexStale, err)
	}
	s.logger.Info("transaction committed",
		"files", len(data.Files), "documents", len(data.Documents), "removed", len(removed), "author", data.Author.String())
	return nil
}

// finish forgets the change set once the content is durable.
func (s *Store) finish() {
	for _, r := range s.cache {
		for _, h := range r.handlers {
			h.dirty = false
		}
	}
	s.changes.Clear()
	s.dropped = make(map[string][]string)
	s.state = stateIdle
}

// AbortChanges discards the open transaction: queued storage writes, working
// tree modifications, buffered index updates and the change set. It can be
// called at any time, even with nothing pending.
func (s *Store) AbortChanges(ctx context.Context) error {
	s.state = stateAborting
	err := errors.Join(s.storage.Discard(ctx), s.vcs.Abort(ctx))
	s.catalog.AbortChanges()
	s.changes.Clear()
	s.cache = make(map[string]*Resource)
	s.dropped = make(map[string][]string)
	s.state = stateIdle
	if err != nil {
		return fmt.Errorf("abort: %w", err)
	}
	s.logger.Debug("transaction aborted")
	return nil
}

// Commit ends the open transaction. With nothing pending it only drops the
// queued storage operations and never reaches version control.
func (s *Store) Commit(ctx context.Context) error {
	if s.changes.IsEmpty() {
		if err := s.storage.Discard(ctx); err != nil {
			return err
		}
		s.catalog.AbortChanges()
		s.dropped = make(map[string][]string)
		s.state = stateIdle
		return nil
	}

	data, err := s.BeforeCommit(ctx)
	if err != nil {
		return errors.Join(err, s.AbortChanges(ctx))
	}
	if err := s.SaveChanges(ctx, data); err != nil {
		if errors.Is(err, ErrIndexStale) {
			return err
		}
		return errors.Join(err, s.AbortChanges(ctx))
	}
	return nil
}

// WithTransaction runs fn and commits its changes, or aborts them when fn
// fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		if abortErr := s.AbortChanges(ctx); abortErr != nil {
			s.logger.Error("abort failed", "error", abortErr)
		}
		return err
	}
	return s.Commit(ctx)
}

// Reindex rebuilds the catalog from the persisted tree. It is the recovery
// path after a commit returned ErrIndexStale.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	if !s.changes.IsEmpty() {
		return 0, errors.New("cannot reindex with pending changes")
	}
	// The files may have been edited behind the store's back.
	s.cache = make(map[string]*Resource)
	var docs []catalog.Document
	err := s.Traverse(ctx, "/", func(r *Resource) error {
		doc, err := s.Document(ctx, r)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err == nil {
		err = s.catalog.Rebuild(docs)
	}
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	count := len(docs)
	s.logger.Info("catalog rebuilt", "documents", count)
	return count, nil
}

// Check reports the files of the working tree that differ from the last
// commit. It fails with ErrInconsistent when there are any.
func (s *Store) Check(ctx context.Context) ([]FileStatus, error) {
	status, err := s.vcs.Stat(ctx)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	if len(status) > 0 {
		return status, fmt.Errorf("%w: %d files", ErrInconsistent, len(status))
	}
	return nil, nil
}

// Diff returns the uncommitted changes of a storage key.
func (s *Store) Diff(ctx context.Context, key string) (string, error) {
	return s.vcs.Diff(ctx, key)
}

// Revisions returns up to limit commits touching the metadata of the
// resource at p, newest first.
func (s *Store) Revisions(ctx context.Context, p string, limit int) ([]Revision, error) {
	h, ok := s.vcs.(Historian)
	if !ok {
		return nil, ErrNoHistory
	}
	r, err := s.GetResource(ctx, p)
	if err != nil {
		return nil, err
	}
	return h.Log(ctx, metadataKey(r.path), limit)
}
