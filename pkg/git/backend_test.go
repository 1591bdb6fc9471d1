package git_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/vellum/pkg/core"
	"github.com/aretw0/vellum/pkg/git"
)

func setupBackend(t *testing.T) (*git.Backend, string) {
	t.Helper()
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	client := git.NewClient(dir, filepath.Join(".vellum", "git.lock"), nil)
	require.NoError(t, client.Init(context.Background()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(".vellum/\n"), 0644))
	return git.NewBackend(client), dir
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestBackend_Lifecycle(t *testing.T) {
	b, dir := setupBackend(t)
	ctx := context.Background()
	ann := core.Author{Name: "Ann", Email: "ann@example.org"}

	write(t, dir, ".metadata", "format: root\n")
	write(t, dir, "docs/a.metadata", "format: page\n")
	require.NoError(t, b.Commit(ctx, []string{".gitignore", ".metadata", "docs/a.metadata", "never.data"}, ann, "init"))

	status, err := b.Stat(ctx)
	require.NoError(t, err)
	assert.Empty(t, status)
	assert.True(t, b.Client().IsRepo())

	t.Run("Nothing To Commit", func(t *testing.T) {
		require.NoError(t, b.Commit(ctx, []string{".metadata"}, ann, "noop"))
		revs, err := b.Log(ctx, ".metadata", 0)
		require.NoError(t, err)
		assert.Len(t, revs, 1)
	})

	t.Run("Diff And Abort", func(t *testing.T) {
		write(t, dir, "docs/a.metadata", "format: file\n")
		write(t, dir, "stray/x.data", "x")

		diff, err := b.Diff(ctx, "docs/a.metadata")
		require.NoError(t, err)
		assert.Contains(t, diff, "+format: file")

		status, err := b.Stat(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []core.FileStatus{
			{Path: "docs/a.metadata", Code: "M"},
			{Path: "stray/x.data", Code: "??"},
		}, status)

		require.NoError(t, b.Abort(ctx))
		status, err = b.Stat(ctx)
		require.NoError(t, err)
		assert.Empty(t, status)
		assert.NoDirExists(t, filepath.Join(dir, "stray"))
	})

	t.Run("Removal Is Committed", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "docs", "a.metadata")))
		require.NoError(t, b.Commit(ctx, []string{"docs/a.metadata"}, core.Anonymous, "delete a"))

		status, err := b.Stat(ctx)
		require.NoError(t, err)
		assert.Empty(t, status)

		revs, err := b.Log(ctx, "docs/a.metadata", 0)
		require.NoError(t, err)
		require.Len(t, revs, 2)
		assert.Equal(t, "delete a", revs[0].Message)
		assert.Equal(t, core.Anonymous, revs[0].Author)
		assert.Equal(t, ann, revs[1].Author)
	})
}
