package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrNameCollision    = errors.New("name already in use")
	ErrInvalidName      = errors.New("invalid resource name")
	ErrInvalidRefAction = errors.New("invalid ref action")
	ErrNotFolder        = errors.New("resource is not a folder")
	ErrRootResource     = errors.New("operation not allowed on the root resource")
	ErrUnknownClass     = errors.New("unknown resource class")
	ErrUnknownHandler   = errors.New("unknown handler")
	ErrPropertyKind     = errors.New("property kind mismatch")
	ErrRemoved          = errors.New("resource is scheduled for removal")
	ErrAlreadyTracked   = errors.New("resource is already part of the change set")
	ErrIndexStale       = errors.New("catalog is stale, run a reindex")
	ErrInconsistent     = errors.New("working tree has uncommitted modifications")
	ErrNoHistory        = errors.New("version control does not keep history")

	// ErrConsistency is matched by every *ConsistencyError.
	ErrConsistency = errors.New("consistency error")
)

// ConsistencyError reports a structural edit that would break the tree:
// a deletion of a referenced resource, a paste the classes do not allow,
// or a move into the resource's own subtree.
type ConsistencyError struct {
	Path string
	// Referrer is the resource still linking to Path, if any.
	Referrer string
	Reason   string
}

func (e *ConsistencyError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("consistency error: %s is referenced by %s", e.Path, e.Referrer)
	}
	return fmt.Sprintf("consistency error: %s: %s", e.Path, e.Reason)
}

// Is makes errors.Is(err, ErrConsistency) hold.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}
