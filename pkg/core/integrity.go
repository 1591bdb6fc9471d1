package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/vellum/pkg/catalog"
)

// checkReferences fails with a *ConsistencyError when a resource outside
// the subtree of r links into it.
//
// The catalog only knows the committed state, so every candidate it returns
// is re-checked against the live resource, and resources pending in the
// open transaction are checked directly.
func (s *Store) checkReferences(ctx context.Context, r *Resource) error {
	targets, err := s.subtree(ctx, r)
	if err != nil {
		return err
	}
	root := r.path
	inSubtree := make(map[string]bool, len(targets))
	for _, t := range targets {
		inSubtree[t.path] = true
	}

	for _, t := range targets {
		q := catalog.And(
			catalog.Phrase("links", t.path),
			catalog.Not(catalog.Phrase(catalog.KeyField, root)),
			catalog.Not(catalog.Phrase("paths", root)),
		)
		rs, err := s.catalog.Search(q)
		if err != nil {
			return fmt.Errorf("integrity query for %s: %w", t.path, err)
		}
		for _, key := range rs.Keys() {
			if s.changes.IsRemoved(key) {
				continue
			}
			referrer, err := s.GetResource(ctx, key)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if slices.Contains(referrer.Links(), t.path) {
				return &ConsistencyError{Path: t.path, Referrer: key}
			}
		}
	}

	for _, p := range s.changes.pending() {
		if IsWithin(p.path, root) {
			continue
		}
		for _, link := range p.Links() {
			if inSubtree[link] {
				return &ConsistencyError{Path: link, Referrer: p.path}
			}
		}
	}
	return nil
}
