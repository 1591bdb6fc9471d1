package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/vellum/pkg/core"
)

// Backend is the git implementation of core.VersionControl. Every store
// commit becomes exactly one git commit.
type Backend struct {
	client *Client
}

// NewBackend returns a backend driving client.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// Client returns the underlying git client.
func (b *Backend) Client() *Client { return b.client }

// Commit implements core.VersionControl. Files still on disk are added, the
// others are recorded as removed.
func (b *Backend) Commit(ctx context.Context, files []string, author core.Author, message string) error {
	unlock, err := b.client.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var present, missing []string
	for _, f := range files {
		_, err := os.Lstat(filepath.Join(b.client.WorkDir, filepath.FromSlash(f)))
		switch {
		case err == nil:
			present = append(present, f)
		case errors.Is(err, os.ErrNotExist):
			missing = append(missing, f)
		default:
			return fmt.Errorf("failed to stat %s: %w", f, err)
		}
	}

	if err := b.client.Add(ctx, present...); err != nil {
		return err
	}
	if err := b.client.Unstage(ctx, missing...); err != nil {
		return err
	}
	staged, err := b.client.HasStagedChanges(ctx)
	if err != nil {
		return err
	}
	if !staged {
		if b.client.Logger != nil {
			b.client.Logger.Debug("nothing to commit", "files", len(files))
		}
		return nil
	}

	_, err = b.client.Run(ctx,
		"-c", "user.name="+author.Name,
		"-c", "user.email="+author.Email,
		"commit", "--quiet", "--no-verify",
		"--author", author.String(),
		"-m", message,
	)
	return err
}

// Abort implements core.VersionControl: tracked files go back to HEAD and
// untracked files are removed. Ignored files are kept.
func (b *Backend) Abort(ctx context.Context) error {
	unlock, err := b.client.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if b.client.HasHead(ctx) {
		if _, err := b.client.Run(ctx, "reset", "--hard", "--quiet"); err != nil {
			return err
		}
	}
	_, err = b.client.Run(ctx, "clean", "-fd", "--quiet")
	return err
}

// Diff implements core.VersionControl.
func (b *Backend) Diff(ctx context.Context, file string) (string, error) {
	args := []string{"diff"}
	if b.client.HasHead(ctx) {
		args = append(args, "HEAD")
	}
	return b.client.Run(ctx, append(args, "--", file)...)
}

// Stat implements core.VersionControl.
func (b *Backend) Stat(ctx context.Context) ([]core.FileStatus, error) {
	out, err := b.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return parseStatus(out), nil
}

// parseStatus reads "git status --porcelain -z" output.
func parseStatus(out []byte) []core.FileStatus {
	var status []core.FileStatus
	entries := strings.Split(string(out), "\x00")
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if len(e) < 4 {
			continue
		}
		code := strings.TrimSpace(e[:2])
		status = append(status, core.FileStatus{Path: e[3:], Code: code})
		// Renames and copies carry the source path as the next entry.
		if strings.ContainsAny(e[:2], "RC") {
			i++
		}
	}
	return status
}

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// Log implements core.Historian.
func (b *Backend) Log(ctx context.Context, file string, limit int) ([]core.Revision, error) {
	if !b.client.HasHead(ctx) {
		return nil, nil
	}
	args := []string{"log", "--format=%H%x1f%an%x1f%ae%x1f%aI%x1f%s%x1e"}
	if limit > 0 {
		args = append(args, "-n", strconv.Itoa(limit))
	}
	out, err := b.client.Run(ctx, append(args, "--", file)...)
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

func parseLog(out string) ([]core.Revision, error) {
	var revs []core.Revision
	for _, rec := range strings.Split(out, recordSep) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		f := strings.Split(rec, fieldSep)
		if len(f) != 5 {
			return nil, fmt.Errorf("unexpected log record %q", rec)
		}
		date, err := time.Parse(time.RFC3339, f[3])
		if err != nil {
			return nil, fmt.Errorf("bad commit date %q: %w", f[3], err)
		}
		revs = append(revs, core.Revision{
			Hash:    f[0],
			Author:  core.Author{Name: f[1], Email: f[2]},
			Date:    date,
			Message: f[4],
		})
	}
	return revs, nil
}

var (
	_ core.VersionControl = (*Backend)(nil)
	_ core.Historian      = (*Backend)(nil)
)
