package core

import (
	"context"
	"fmt"
	"sort"
)

// ChangeSet records the pending changes of the open transaction. A path is
// in at most one of added, changed and removed.
type ChangeSet struct {
	added   map[string]*Resource
	changed map[string]*Resource
	removed map[string]struct{}
	// moves maps the old path of a moved subtree to its new path.
	moves map[string]string
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	cs := &ChangeSet{}
	cs.Clear()
	return cs
}

// AddResource registers a new resource. Re-adding a removed path turns it
// into a change of that path.
func (cs *ChangeSet) AddResource(r *Resource) error {
	p := r.path
	if _, ok := cs.added[p]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, p)
	}
	if _, ok := cs.changed[p]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, p)
	}
	if _, ok := cs.removed[p]; ok {
		delete(cs.removed, p)
		cs.changed[p] = r
		return nil
	}
	cs.added[p] = r
	return nil
}

// ChangeResource registers a modification. It is a no-op for added or
// already changed resources and fails for removed ones.
func (cs *ChangeSet) ChangeResource(r *Resource) error {
	p := r.path
	if _, ok := cs.removed[p]; ok {
		return fmt.Errorf("%w: %s", ErrRemoved, p)
	}
	if _, ok := cs.added[p]; ok {
		return nil
	}
	cs.changed[p] = r
	return nil
}

// RemoveResource registers the removal of r and, for folders, of every
// descendant, in one walk. Added paths are forgotten; the others move to removed.
func (cs *ChangeSet) RemoveResource(ctx context.Context, r *Resource) error {
	return r.store.walk(ctx, r, func(d *Resource) error {
		cs.remove(d.path)
		return nil
	})
}

func (cs *ChangeSet) remove(p string) {
	if _, ok := cs.added[p]; ok {
		delete(cs.added, p)
		return
	}
	delete(cs.changed, p)
	cs.removed[p] = struct{}{}
}

// move records that the subtree at from now lives at to. Moves of paths
// already moved in this transaction are collapsed onto the original path,
// so committed links are rewritten in one step.
func (cs *ChangeSet) move(from, to string) {
	chained := make(map[string]string)
	for orig, target := range cs.moves {
		switch {
		case IsWithin(target, from):
			cs.moves[orig] = rebase(target, from, to)
		case IsWithin(from, target):
			chained[rebase(from, target, orig)] = to
		}
	}
	for orig, target := range chained {
		cs.moves[orig] = target
	}
	cs.moves[from] = to
	for orig, target := range cs.moves {
		if orig == target {
			delete(cs.moves, orig)
		}
	}
}

// forgetMoves drops the moves whose destination lies in the deleted subtree at p.
func (cs *ChangeSet) forgetMoves(p string) {
	for orig, target := range cs.moves {
		if IsWithin(target, p) {
			delete(cs.moves, orig)
		}
	}
}

// movedPath returns where p lives after the recorded moves. The deepest
// matching move wins.
func movedPath(p string, moves map[string]string) (string, bool) {
	best := ""
	for from := range moves {
		if IsWithin(p, from) && len(from) > len(best) {
			best = from
		}
	}
	if best == "" {
		return p, false
	}
	return rebase(p, best, moves[best]), true
}

// IsAdded reports whether p was created in this transaction.
func (cs *ChangeSet) IsAdded(p string) bool { _, ok := cs.added[p]; return ok }

// IsChanged reports whether p was modified in this transaction.
func (cs *ChangeSet) IsChanged(p string) bool { _, ok := cs.changed[p]; return ok }

// IsRemoved reports whether p is scheduled for removal.
func (cs *ChangeSet) IsRemoved(p string) bool { _, ok := cs.removed[p]; return ok }

// Added returns the added paths, sorted.
func (cs *ChangeSet) Added() []string { return sortedPaths(cs.added) }

// Changed returns the changed paths, sorted.
func (cs *ChangeSet) Changed() []string { return sortedPaths(cs.changed) }

// Removed returns the removed paths, sorted.
func (cs *ChangeSet) Removed() []string { return sortedPaths(cs.removed) }

// Moves returns a copy of the recorded moves.
func (cs *ChangeSet) Moves() map[string]string {
	out := make(map[string]string, len(cs.moves))
	for k, v := range cs.moves {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether nothing is pending.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.added) == 0 && len(cs.changed) == 0 && len(cs.removed) == 0
}

// Clear forgets every pending change.
func (cs *ChangeSet) Clear() {
	cs.added = make(map[string]*Resource)
	cs.changed = make(map[string]*Resource)
	cs.removed = make(map[string]struct{})
	cs.moves = make(map[string]string)
}

// pending returns the added and changed resources ordered by path, so that
// parents come before their children.
func (cs *ChangeSet) pending() []*Resource {
	out := make([]*Resource, 0, len(cs.added)+len(cs.changed))
	for _, r := range cs.added {
		out = append(out, r)
	}
	for _, r := range cs.changed {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func sortedPaths[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
