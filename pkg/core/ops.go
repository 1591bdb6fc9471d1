package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// RefAction selects how DelResource treats incoming references.
type RefAction string

const (
	// RefRestrict refuses to delete a resource that is still linked to.
	RefRestrict RefAction = "restrict"
	// RefForce deletes regardless of incoming links.
	RefForce RefAction = "force"
)

// ParseRefAction validates a ref action given as text.
func ParseRefAction(s string) (RefAction, error) {
	switch a := RefAction(s); a {
	case RefRestrict, RefForce:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRefAction, s)
}

type deleteOptions struct {
	soft bool
}

// DeleteOption tunes DelResource.
type DeleteOption func(*deleteOptions)

// Soft makes the deletion of a missing resource a no-op.
func Soft() DeleteOption {
	return func(o *deleteOptions) { o.soft = true }
}

// MakeResource creates a resource of class format at p. A path ending in
// "/" asks for an automatic name inside that folder.
func (s *Store) MakeResource(ctx context.Context, p, format string, props Props) (*Resource, error) {
	if strings.HasSuffix(p, "/") {
		name, err := s.NextName(ctx, p)
		if err != nil {
			return nil, err
		}
		p = path.Join(p, name)
	}
	p = CleanPath(p)
	if p == "/" {
		return nil, fmt.Errorf("%w: %s", ErrNameCollision, p)
	}
	if err := ValidateName(BaseName(p)); err != nil {
		return nil, err
	}

	class, err := s.registry.Get(format)
	if err != nil {
		return nil, err
	}
	parent, err := s.folder(ctx, ParentPath(p))
	if err != nil {
		return nil, err
	}
	if err := checkPaste(p, class, parent.class); err != nil {
		return nil, err
	}
	if err := s.checkFree(ctx, p); err != nil {
		return nil, err
	}

	r := s.newResource(p, class, NewMetadata(class.ID, class.Version))
	s.stampCreation(r)
	if err := r.applyProps(props); err != nil {
		return nil, err
	}
	if err := s.changes.AddResource(r); err != nil {
		return nil, err
	}
	s.cache[p] = r
	s.logger.Debug("resource created", "path", p, "format", format)
	return r, nil
}

// NextName returns the automatic name of the next child of the folder at p:
// one more than the largest integer name in use.
func (s *Store) NextName(ctx context.Context, p string) (string, error) {
	folder, err := s.folder(ctx, CleanPath(p))
	if err != nil {
		return "", err
	}
	names, err := s.childNames(ctx, folder.path)
	if err != nil {
		return "", err
	}
	max := 0
	for _, name := range names {
		if n, err := strconv.Atoi(name); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1), nil
}

// DelResource deletes the resource at p and its descendants. With
// RefRestrict the deletion fails with a *ConsistencyError while another
// resource links into the subtree.
func (s *Store) DelResource(ctx context.Context, p string, action RefAction, opts ...DeleteOption) error {
	if _, err := ParseRefAction(string(action)); err != nil {
		return err
	}
	var o deleteOptions
	for _, opt := range opts {
		opt(&o)
	}

	p = CleanPath(p)
	if p == "/" {
		return ErrRootResource
	}
	r, err := s.GetResource(ctx, p)
	if errors.Is(err, ErrNotFound) && o.soft {
		return nil
	}
	if err != nil {
		return err
	}

	if action == RefRestrict {
		if err := s.checkReferences(ctx, r); err != nil {
			return err
		}
	}
	if err := s.drop(ctx, r); err != nil {
		return err
	}
	s.changes.forgetMoves(p)
	s.logger.Debug("resource deleted", "path", p, "ref_action", string(action))
	return nil
}

// drop registers the removal of r and its descendants and queues the
// deletion of their files.
func (s *Store) drop(ctx context.Context, r *Resource) error {
	resources, err := s.subtree(ctx, r)
	if err != nil {
		return err
	}
	added := make(map[string]bool, len(resources))
	for _, d := range resources {
		added[d.path] = s.changes.IsAdded(d.path)
	}
	if err := s.changes.RemoveResource(ctx, r); err != nil {
		return err
	}
	for _, d := range resources {
		keys := d.keys()
		for _, key := range keys {
			if err := s.storage.Delete(ctx, key); err != nil {
				return fmt.Errorf("failed to delete %s: %w", key, err)
			}
		}
		if !added[d.path] {
			s.dropped[d.path] = keys
		}
		delete(s.cache, d.path)
	}
	return nil
}

// CopyResource copies the subtree at src to dst. Every copy gets a new uuid.
func (s *Store) CopyResource(ctx context.Context, src, dst string) (*Resource, error) {
	return s.transfer(ctx, src, dst, false)
}

// MoveResource moves the subtree at src to dst. Links to the moved
// resources are rewritten on commit.
func (s *Store) MoveResource(ctx context.Context, src, dst string) (*Resource, error) {
	return s.transfer(ctx, src, dst, true)
}

func (s *Store) transfer(ctx context.Context, src, dst string, move bool) (*Resource, error) {
	src, dst = CleanPath(src), CleanPath(dst)
	if src == "/" || dst == "/" {
		return nil, ErrRootResource
	}
	if move && IsWithin(dst, src) {
		return nil, &ConsistencyError{Path: src, Reason: "cannot move a resource into its own subtree"}
	}
	if err := ValidateName(BaseName(dst)); err != nil {
		return nil, err
	}

	source, err := s.GetResource(ctx, src)
	if err != nil {
		return nil, err
	}
	parent, err := s.folder(ctx, ParentPath(dst))
	if err != nil {
		return nil, err
	}
	if err := checkPaste(dst, source.class, parent.class); err != nil {
		return nil, err
	}
	if err := s.checkFree(ctx, dst); err != nil {
		return nil, err
	}

	resources, err := s.subtree(ctx, source)
	if err != nil {
		return nil, err
	}
	var top *Resource
	for _, d := range resources {
		np := rebase(d.path, src, dst)
		r := s.newResource(np, d.class, d.meta.clone())
		if !move {
			s.stampCreation(r)
		}
		for _, name := range d.class.Handlers {
			if err := s.transferHandler(ctx, d, r, name, move); err != nil {
				return nil, err
			}
		}
		if err := s.changes.AddResource(r); err != nil {
			return nil, err
		}
		s.cache[np] = r
		if top == nil {
			top = r
		}
	}

	if move {
		if err := s.drop(ctx, source); err != nil {
			return nil, err
		}
		s.changes.move(src, dst)
	}
	s.logger.Debug("resource transferred", "src", src, "dst", dst, "move", move, "resources", len(resources))
	return top, nil
}

func (s *Store) transferHandler(ctx context.Context, from, to *Resource, name string, move bool) error {
	src, dst := handlerKey(from.path, name), handlerKey(to.path, name)
	ok, err := s.storage.Exists(ctx, src)
	if err != nil || !ok {
		return err
	}
	if move {
		err = s.storage.Move(ctx, src, dst)
	} else {
		err = s.storage.Copy(ctx, src, dst)
	}
	if err != nil {
		return fmt.Errorf("failed to transfer %s: %w", src, err)
	}
	h, err := to.Handler(name)
	if err != nil {
		return err
	}
	h.dirty = true
	return nil
}

// folder returns the folder resource at p.
func (s *Store) folder(ctx context.Context, p string) (*Resource, error) {
	r, err := s.GetResource(ctx, p)
	if err != nil {
		return nil, err
	}
	if !r.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, p)
	}
	return r, nil
}

func (s *Store) checkFree(ctx context.Context, p string) error {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrNameCollision, p)
	}
	return nil
}

// checkPaste enforces that the parent accepts the class and the class
// accepts the parent.
func checkPaste(p string, class, parent *Class) error {
	if !parent.CanPaste(class) {
		return &ConsistencyError{Path: p, Reason: fmt.Sprintf("%s does not accept %s", parent.ID, class.ID)}
	}
	if !class.CanPasteInto(parent) {
		return &ConsistencyError{Path: p, Reason: fmt.Sprintf("%s cannot be pasted into %s", class.ID, parent.ID)}
	}
	return nil
}
