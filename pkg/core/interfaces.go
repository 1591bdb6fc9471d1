package core

import (
	"context"
	"time"

	"github.com/aretw0/vellum/pkg/catalog"
)

// Entry is one item of a storage listing.
type Entry struct {
	Name  string
	IsDir bool
}

// Storage is the byte store beneath the resource tree. Keys are slash
// separated and relative to the store root ("a/b.metadata").
//
// Writes, deletes, copies and moves are queued: they are visible to the
// reads of the same Storage immediately but only reach the backing medium
// on Flush. Discard drops the queue.
type Storage interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Read returns an error wrapping ErrNotFound when key is absent.
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	// Delete of an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Copy(ctx context.Context, src, dst string) error
	Move(ctx context.Context, src, dst string) error
	// List returns the entries of a directory key ("" is the root), sorted by name.
	List(ctx context.Context, dir string) ([]Entry, error)

	Flush(ctx context.Context) error
	Discard(ctx context.Context) error
}

// FileStatus is the working tree state of one file as seen by the VCS.
type FileStatus struct {
	Path string
	// Code is the short status, e.g. "M", "A", "D", "??".
	Code string
}

// VersionControl is the append-only history of the stored files.
type VersionControl interface {
	// Commit records exactly one revision containing files. Files absent from
	// the working tree are recorded as removed, or skipped when never tracked.
	Commit(ctx context.Context, files []string, author Author, message string) error
	// Abort resets every uncommitted modification of the working tree.
	Abort(ctx context.Context) error
	// Diff returns the uncommitted changes of a file as a textual diff.
	Diff(ctx context.Context, file string) (string, error)
	// Stat returns the files with uncommitted modifications.
	Stat(ctx context.Context) ([]FileStatus, error)
}

// Revision is one commit in the history of a file.
type Revision struct {
	Hash    string
	Author  Author
	Date    time.Time
	Message string
}

// Historian is implemented by version control backends that can list the
// history of a file.
type Historian interface {
	Log(ctx context.Context, file string, limit int) ([]Revision, error)
}

// Catalog is the search index the store keeps in sync with the tree.
// *catalog.Catalog implements it.
type Catalog interface {
	IndexDocument(doc catalog.Document) error
	UnindexDocument(key string)
	Search(q catalog.Query) (*catalog.ResultSet, error)
	SaveChanges() error
	AbortChanges()
	// Rebuild atomically replaces the whole index.
	Rebuild(docs []catalog.Document) error
}

var _ Catalog = (*catalog.Catalog)(nil)

// nopVCS is used when the store runs without version control.
type nopVCS struct{}

func (nopVCS) Commit(context.Context, []string, Author, string) error { return nil }
func (nopVCS) Abort(context.Context) error                             { return nil }
func (nopVCS) Diff(context.Context, string) (string, error)            { return "", nil }
func (nopVCS) Stat(context.Context) ([]FileStatus, error)              { return nil, nil }
