package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/vellum/pkg/adapters/fs"
	"github.com/aretw0/vellum/pkg/catalog"
	"github.com/aretw0/vellum/pkg/classes"
	"github.com/aretw0/vellum/pkg/core"
	"github.com/aretw0/vellum/pkg/git"
)

// CatalogFile is the catalog snapshot inside the system directory.
const CatalogFile = "catalog.json"

// ErrNotSite is returned by Open for a directory without a root resource.
var ErrNotSite = errors.New("not a vellum site")

// Init opens the site at path, creating it when needed.
//
//	site, err := platform.Init("./site", platform.WithLogger(logger))
func Init(path string, opts ...Option) (*Site, error) {
	return Open(path, append([]Option{WithAutoInit(true)}, opts...)...)
}

// Open opens the site at path and wires its components: filesystem storage,
// git history, catalog and store.
func Open(path string, opts ...Option) (*Site, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if o.systemDir == "" {
		o.systemDir = fs.DefaultSystemDir
	}
	ctx := context.Background()

	useTemp := o.forceTemp || (IsDevRun() && o.devSafety)
	resolved := ResolvePath(path, useTemp)
	if useTemp && resolved != filepath.Clean(path) {
		logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolved)
	}
	root, err := filepath.Abs(resolved)
	if err != nil {
		return nil, err
	}

	if err := prepareDir(root, o); err != nil {
		return nil, err
	}
	versioned := detectVersioning(root, o)
	if err := os.MkdirAll(filepath.Join(root, o.systemDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create system directory: %w", err)
	}

	site := &Site{path: root, logger: logger}
	site.storage = fs.NewStorage(fs.Config{Path: root, SystemDir: o.systemDir, Logger: logger})

	var vcs core.VersionControl
	if versioned {
		backend, err := openGit(ctx, root, o, logger)
		if err != nil {
			return nil, err
		}
		site.vcs, vcs = backend, backend
	} else {
		logger.Debug("running without version control", "path", root)
	}

	reg := o.registry
	rootFormat := o.rootFormat
	if reg == nil {
		if reg, err = classes.NewRegistry(); err != nil {
			return nil, err
		}
		if rootFormat == "" {
			rootFormat = classes.Root
		}
	}
	schema, err := reg.Schema()
	if err != nil {
		return nil, err
	}

	catalogPath := filepath.Join(root, o.systemDir, CatalogFile)
	_, statErr := os.Stat(catalogPath)
	rebuild := statErr != nil
	cat, err := catalog.Open(schema, catalog.Config{Path: catalogPath, Logger: logger})
	if err != nil {
		logger.Warn("catalog unreadable, rebuilding", "path", catalogPath, "error", err)
		cat, rebuild = catalog.New(schema, catalog.Config{Path: catalogPath, Logger: logger}), true
	}
	site.catalog = cat

	store, err := core.NewStore(core.Config{
		Storage:         site.storage,
		Catalog:         cat,
		Registry:        reg,
		VCS:             vcs,
		Logger:          logger,
		RootFormat:      rootFormat,
		DefaultLanguage: o.defaultLanguage,
		Clock:           o.clock,
	})
	if err != nil {
		return nil, err
	}
	site.store = store

	if o.autoInit {
		created, err := store.Init(ctx)
		if err != nil {
			return nil, err
		}
		if created {
			if err := store.Commit(core.WithChangeReason(ctx, FormatChangeReason(CommitTypeChore, "", "initialize site", ""))); err != nil {
				return nil, fmt.Errorf("failed to initialize site: %w", err)
			}
			logger.Info("site initialized", "path", root, "versioned", versioned)
			rebuild = false
		}
	}
	if ok, err := store.Exists(ctx, "/"); err != nil || !ok {
		return nil, errors.Join(fmt.Errorf("%w: %s", ErrNotSite, root), err)
	}

	if rebuild {
		if _, err := store.Reindex(ctx); err != nil {
			return nil, err
		}
	}
	return site, nil
}

// prepareDir checks or creates the site directory.
func prepareDir(root string, o *options) error {
	info, err := os.Stat(root)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("site path is not a directory: %s", root)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return err
	case o.mustExist || !o.autoInit:
		return fmt.Errorf("site path does not exist: %s", root)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create site directory: %w", err)
	}
	return nil
}

// detectVersioning decides whether git is used. Without an explicit choice
// a repository is used when present; a fresh site gets one unless the
// system directory shows an existing unversioned site.
func detectVersioning(root string, o *options) bool {
	if o.versioning != nil {
		return *o.versioning
	}
	if hasFile(root, ".git") {
		return true
	}
	return o.autoInit && !hasFile(root, o.systemDir)
}

func openGit(ctx context.Context, root string, o *options, logger *slog.Logger) (*git.Backend, error) {
	if !git.IsInstalled() {
		return nil, fmt.Errorf("git is not installed")
	}
	client := git.NewClient(root, filepath.Join(o.systemDir, "git.lock"), logger)
	if !client.IsRepo() {
		if !o.autoInit {
			return nil, fmt.Errorf("not a git repository: %s", root)
		}
		if err := client.Init(ctx); err != nil {
			return nil, err
		}
	}
	if err := excludeSystemDir(root, o.systemDir); err != nil {
		return nil, err
	}
	return git.NewBackend(client), nil
}

// excludeSystemDir keeps the system directory out of git through the local
// exclude file, so that no untracked file shows up in the working tree.
func excludeSystemDir(root, systemDir string) error {
	p := filepath.Join(root, ".git", "info", "exclude")
	rule := "/" + systemDir + "/"
	data, err := os.ReadFile(p)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == rule {
			return nil
		}
	}
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}
	data = append(data, rule+"\n"...)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}
