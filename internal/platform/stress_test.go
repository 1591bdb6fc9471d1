package platform_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/vellum/internal/platform"
	"github.com/aretw0/vellum/pkg/adapters/fs"
	"github.com/aretw0/vellum/pkg/classes"
	"github.com/aretw0/vellum/pkg/core"
)

// TestConcurrency_ExternalVsInternal runs transactions while other files of
// the site change on disk and the watcher reindexes after every edit.
// No transaction may be lost and the catalog must end up complete.
func TestConcurrency_ExternalVsInternal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	dir := t.TempDir()
	site, err := platform.Init(dir, platform.WithVersioning(false), platform.WithDevSafety(false))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var wg sync.WaitGroup

	// External actor: files that belong to no resource.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			path := filepath.Join(dir, fmt.Sprintf("noise-%d.txt", rand.Intn(10)))
			_ = os.WriteFile(path, []byte(time.Now().String()), 0644)
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
		}
	}()

	// Watcher actor.
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- site.Watch(ctx, "", func(fs.Event) {})
	}()

	// Internal actors: one resource per transaction.
	const writers, perWriter = 4, 5
	var (
		mu     sync.Mutex
		failed []error
	)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				p := fmt.Sprintf("/data-%d-%d", w, i)
				err := site.Update(context.Background(), func(ctx context.Context, store *core.Store) error {
					_, err := store.MakeResource(ctx, p, classes.Page, core.Props{"title": p})
					return err
				})
				if err != nil {
					mu.Lock()
					failed = append(failed, err)
					mu.Unlock()
				}
				time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	select {
	case err := <-watchDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}

	assert.Empty(t, failed)
	n, err := site.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter+1, n, "root plus every resource made")
}
