package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/vellum/pkg/adapters/fs"
	"github.com/aretw0/vellum/pkg/adapters/lifecycle"
)

func TestSource_BridgesWatcherEvents(t *testing.T) {
	root := t.TempDir()
	w, err := fs.NewWatcher(fs.NewStorage(fs.Config{Path: root}), fs.WatchConfig{Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := lifecycle.NewSource(w)
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_ = os.WriteFile(filepath.Join(root, "a.metadata"), []byte("format: page\n"), 0644)

	select {
	case e := <-src.Events():
		fe, ok := e.(fs.Event)
		if !ok {
			t.Fatalf("unexpected event type %T", e)
		}
		if fe.Path != "/a" {
			t.Errorf("unexpected event %v", fe)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	cancel()
	select {
	case _, ok := <-src.Events():
		for ok {
			_, ok = <-src.Events()
		}
	case <-time.After(3 * time.Second):
		t.Fatal("source not closed")
	}
}
