package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// lockRetry is the polling interval of Lock.
const lockRetry = 10 * time.Millisecond

// Client wraps git command execution with a file-based lock for process safety.
type Client struct {
	WorkDir  string
	Logger   *slog.Logger
	lockPath string
}

// NewClient creates a new git client for the given working directory.
// lockName is relative to workDir and should live in an ignored directory.
func NewClient(workDir, lockName string, logger *slog.Logger) *Client {
	return &Client{
		WorkDir:  workDir,
		Logger:   logger,
		lockPath: filepath.Join(workDir, lockName),
	}
}

// IsInstalled reports whether a git executable is on the PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Lock acquires the file lock, polling until it is free or ctx is done.
func (c *Client) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(c.lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	for {
		f, err := os.OpenFile(c.lockPath, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() { os.Remove(c.lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", c.lockPath, ctx.Err())
		case <-time.After(lockRetry):
		}
	}
}

// Run executes a git command in the working directory and returns its
// trimmed output.
// NOTE: It does NOT acquire the lock. Callers serialize through Lock.
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	out, err := c.run(ctx, args...)
	return strings.TrimSpace(string(out)), err
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.Logger != nil {
		c.Logger.Debug("executing git", "args", args, "dir", c.WorkDir)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.WorkDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, &Error{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return out, nil
}

// Error is returned when a git command exits with an error.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s failed: %v: %s", strings.Join(e.Args, " "), e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// exitCode returns the exit status carried by err, or -1.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// Init initializes a new git repository. Re-running it is safe.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.Run(ctx, "init", "--quiet")
	return err
}

// IsRepo reports whether the working directory holds a repository.
func (c *Client) IsRepo() bool {
	_, err := os.Stat(filepath.Join(c.WorkDir, ".git"))
	return err == nil
}

// HasHead reports whether the repository has at least one commit.
func (c *Client) HasHead(ctx context.Context) bool {
	_, err := c.Run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

// Add stages files.
func (c *Client) Add(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, files...)
	_, err := c.Run(ctx, args...)
	return err
}

// Unstage records the removal of files that are gone from the working tree.
// Paths that were never tracked are ignored.
func (c *Client) Unstage(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"rm", "--cached", "--ignore-unmatch", "--quiet", "--"}, files...)
	_, err := c.Run(ctx, args...)
	return err
}

// HasStagedChanges reports whether the index differs from HEAD.
func (c *Client) HasStagedChanges(ctx context.Context) (bool, error) {
	_, err := c.Run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	if exitCode(err) == 1 {
		return true, nil
	}
	return false, err
}

// Status returns the porcelain status of the repo, NUL separated.
func (c *Client) Status(ctx context.Context) ([]byte, error) {
	return c.run(ctx, "status", "--porcelain", "-z", "--untracked-files=all")
}
