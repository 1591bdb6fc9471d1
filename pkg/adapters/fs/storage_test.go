package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aretw0/vellum/pkg/adapters/fs"
	"github.com/aretw0/vellum/pkg/core"
)

// setupStorage creates a storage over a fresh directory.
func setupStorage(t *testing.T) (*fs.Storage, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "site")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	return fs.NewStorage(fs.Config{Path: root}), root
}

func TestStorage_Queue(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes Reach Disk On Flush", func(t *testing.T) {
		s, root := setupStorage(t)
		if err := s.Write(ctx, "docs/a.metadata", []byte("format: page\n")); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(filepath.Join(root, "docs", "a.metadata")); !os.IsNotExist(err) {
			t.Error("write must be queued")
		}
		data, err := s.Read(ctx, "docs/a.metadata")
		if err != nil || string(data) != "format: page\n" {
			t.Errorf("queued write not visible: %q %v", data, err)
		}

		if err := s.Flush(ctx); err != nil {
			t.Fatal(err)
		}
		onDisk, err := os.ReadFile(filepath.Join(root, "docs", "a.metadata"))
		if err != nil || string(onDisk) != "format: page\n" {
			t.Errorf("flushed content: %q %v", onDisk, err)
		}
	})

	t.Run("Discard Drops The Queue", func(t *testing.T) {
		s, root := setupStorage(t)
		_ = s.Write(ctx, "a.data", []byte("x"))
		_ = s.Discard(ctx)
		_ = s.Flush(ctx)
		if _, err := os.Stat(filepath.Join(root, "a.data")); !os.IsNotExist(err) {
			t.Error("discarded write reached the disk")
		}
		if ok, _ := s.Exists(ctx, "a.data"); ok {
			t.Error("discarded write still visible")
		}
	})

	t.Run("Delete Prunes Empty Directories", func(t *testing.T) {
		s, root := setupStorage(t)
		_ = s.Write(ctx, "a/b/c.metadata", nil)
		_ = s.Flush(ctx)

		_ = s.Delete(ctx, "a/b/c.metadata")
		if _, err := s.Read(ctx, "a/b/c.metadata"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.Flush(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
			t.Error("empty directories must be removed")
		}
		if _, err := os.Stat(root); err != nil {
			t.Error("root must survive pruning")
		}
	})

	t.Run("Copy And Move", func(t *testing.T) {
		s, root := setupStorage(t)
		_ = s.Write(ctx, "a.data", []byte("x"))
		_ = s.Flush(ctx)

		if err := s.Copy(ctx, "a.data", "b/a.data"); err != nil {
			t.Fatal(err)
		}
		if err := s.Move(ctx, "a.data", "c.data"); err != nil {
			t.Fatal(err)
		}
		if err := s.Move(ctx, "missing", "d"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_ = s.Flush(ctx)

		for name, want := range map[string]bool{"a.data": false, "b/a.data": true, "c.data": true} {
			_, err := os.Stat(filepath.Join(root, filepath.FromSlash(name)))
			if got := err == nil; got != want {
				t.Errorf("%s exists = %v, want %v", name, got, want)
			}
		}
	})

	t.Run("Keys Stay Below The Root", func(t *testing.T) {
		s, _ := setupStorage(t)
		if err := s.Write(ctx, "../escape", nil); err == nil {
			t.Error("expected an error for a key outside the root")
		}
	})
}

func TestStorage_List(t *testing.T) {
	ctx := context.Background()
	s, root := setupStorage(t)
	_ = s.Write(ctx, ".metadata", nil)
	_ = s.Write(ctx, "docs.metadata", nil)
	_ = s.Write(ctx, "docs/a.metadata", nil)
	_ = s.Flush(ctx)
	for _, dir := range []string{".git", ".vellum"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(root, "vellum-tmp-123"), nil, 0644)

	_ = s.Write(ctx, "new.metadata", nil)
	_ = s.Delete(ctx, "docs.metadata")

	got, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []core.Entry{{Name: ".metadata"}, {Name: "docs", IsDir: true}, {Name: "new.metadata"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("root listing: %+v", got)
	}

	got, _ = s.List(ctx, "missing")
	if len(got) != 0 {
		t.Errorf("missing directory: %+v", got)
	}
}

func TestStorage_State(t *testing.T) {
	s, root := setupStorage(t)
	_ = s.Write(context.Background(), "a", nil)

	state, ok := s.State().(fs.StorageState)
	if !ok {
		t.Fatalf("unexpected state type %T", s.State())
	}
	if state.Path != root || state.SystemDir != fs.DefaultSystemDir || state.PendingWrites != 1 {
		t.Errorf("state: %+v", state)
	}
}
