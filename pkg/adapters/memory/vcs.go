package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/aretw0/vellum/pkg/core"
)

// Commit is one revision recorded by the VCS fake.
type Commit struct {
	ID      string
	Files   []string
	Author  core.Author
	Message string
	Date    time.Time
}

// VCS is an in-memory core.VersionControl over a Storage: Commit snapshots
// the flushed files, Abort restores the last snapshot.
type VCS struct {
	mu      sync.Mutex
	storage *Storage
	head    map[string][]byte
	commits []Commit
	calls   int
	aborts  int
}

// NewVCS returns a VCS tracking storage.
func NewVCS(storage *Storage) *VCS {
	return &VCS{storage: storage, head: make(map[string][]byte)}
}

// Commit implements core.VersionControl.
func (v *VCS) Commit(_ context.Context, files []string, author core.Author, message string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++

	tree := v.storage.Snapshot()
	var staged []string
	for _, f := range files {
		data, onDisk := tree[f]
		_, tracked := v.head[f]
		switch {
		case onDisk:
			v.head[f] = data
		case tracked:
			delete(v.head, f)
		default:
			continue
		}
		staged = append(staged, f)
	}
	if len(staged) == 0 {
		return nil
	}
	sort.Strings(staged)
	v.commits = append(v.commits, Commit{
		ID:      uuid.NewString(),
		Files:   staged,
		Author:  author,
		Message: message,
		Date:    time.Now(),
	})
	return nil
}

// Abort implements core.VersionControl.
func (v *VCS) Abort(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.aborts++
	v.storage.restore(v.head)
	return nil
}

// Diff implements core.VersionControl with a patch between the committed
// and the flushed content.
func (v *VCS) Diff(_ context.Context, file string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tree := v.storage.Snapshot()
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(string(v.head[file]), string(tree[file]))
	return dmp.PatchToText(patches), nil
}

// Stat implements core.VersionControl.
func (v *VCS) Stat(_ context.Context) ([]core.FileStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tree := v.storage.Snapshot()
	var out []core.FileStatus
	for f, data := range tree {
		old, tracked := v.head[f]
		switch {
		case !tracked:
			out = append(out, core.FileStatus{Path: f, Code: "??"})
		case string(old) != string(data):
			out = append(out, core.FileStatus{Path: f, Code: "M"})
		}
	}
	for f := range v.head {
		if _, ok := tree[f]; !ok {
			out = append(out, core.FileStatus{Path: f, Code: "D"})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Log implements core.Historian.
func (v *VCS) Log(_ context.Context, file string, limit int) ([]core.Revision, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []core.Revision
	for i := len(v.commits) - 1; i >= 0; i-- {
		c := v.commits[i]
		if !slices.Contains(c.Files, file) {
			continue
		}
		out = append(out, core.Revision{Hash: c.ID, Author: c.Author, Date: c.Date, Message: c.Message})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Commits returns the recorded revisions, oldest first.
func (v *VCS) Commits() []Commit {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Commit(nil), v.commits...)
}

// Calls returns how many times Commit was invoked, including calls that
// recorded nothing.
func (v *VCS) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// Aborts returns how many times Abort was invoked.
func (v *VCS) Aborts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.aborts
}

var (
	_ core.VersionControl = (*VCS)(nil)
	_ core.Historian      = (*VCS)(nil)
)
