package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/vellum"
	"github.com/aretw0/vellum/pkg/catalog"
	"github.com/aretw0/vellum/pkg/core"
)

func run(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), "vellum %v", args)
}

func TestCLI_Transactions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")

	run(t, "init", dir, "--gitless")
	run(t, "make", "/about", "page", "-C", dir, "--title", "About", "--set", "subject=company", "--author", "Ann")
	run(t, "set", "/about", "subject", "company", "team", "-C", dir)
	run(t, "copy", "/about", "/team", "-C", dir)
	run(t, "move", "/team", "/people", "-C", dir)

	site, err := vellum.Open(dir, vellum.WithDevSafety(false), vellum.WithMustExist(true))
	require.NoError(t, err)

	ctx := context.Background()
	err = site.View(ctx, func(ctx context.Context, store *core.Store) error {
		about, err := store.GetResource(ctx, "/about")
		require.NoError(t, err)
		assert.Equal(t, "About", about.Title(ctx))
		assert.Equal(t, []string{"company", "team"}, about.GetValues("subject"))
		assert.Equal(t, "Ann <nobody@localhost>", about.GetValue(ctx, core.PropLastAuthor, ""))

		ok, err := store.Exists(ctx, "/team")
		require.NoError(t, err)
		assert.False(t, ok)

		rs, err := store.Catalog().Search(catalog.Phrase("subject", "team"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/about", "/people"}, rs.Keys())
		return nil
	})
	require.NoError(t, err)

	run(t, "delete", "/people", "-C", dir)
	run(t, "delete", "/people", "--if-exists", "-C", dir)
	run(t, "reindex", "-C", dir)

	n, err := site.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
