package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/vellum/pkg/adapters/fs"
)

func TestResourcePath(t *testing.T) {
	tests := map[string]string{
		".metadata":             "/",
		"a.metadata":            "/a",
		"a.data":                "/a",
		"docs/index.html.body":  "/docs/index.html",
		"docs/sub/x.y.metadata": "/docs/sub/x.y",
	}
	for key, want := range tests {
		if got := fs.ResourcePath(key); got != want {
			t.Errorf("ResourcePath(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestNewWatcher_InvalidPattern(t *testing.T) {
	s, _ := setupStorage(t)
	if _, err := fs.NewWatcher(s, fs.WatchConfig{Pattern: "[unclosed"}); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

func TestWatcher_ReportsExternalChanges(t *testing.T) {
	s, root := setupStorage(t)
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0755); err != nil {
		t.Fatal(err)
	}

	w, err := fs.NewWatcher(s, fs.WatchConfig{Pattern: "**/*.metadata", Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !w.Active() {
		t.Error("watcher should be active")
	}

	_ = os.WriteFile(filepath.Join(root, "docs", "a.data"), []byte("ignored"), 0644)
	_ = os.WriteFile(filepath.Join(root, "docs", "a.metadata"), []byte("format: page\n"), 0644)

	select {
	case e := <-events:
		if e.Key != "docs/a.metadata" || e.Path != "/docs/a" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	cancel()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				if w.Active() {
					t.Error("watcher still active after shutdown")
				}
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed")
		}
	}
}
