package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/vellum/pkg/core"
)

// EventType classifies a change seen on disk.
type EventType string

const (
	EventCreate EventType = "create"
	EventModify EventType = "modify"
	EventDelete EventType = "delete"
	// EventReconcile is sent after a git operation, whose individual file
	// events are not reported.
	EventReconcile EventType = "reconcile"
)

// Event is a change to a stored file made outside the store.
type Event struct {
	Type EventType
	// Key is the storage key of the file.
	Key string
	// Path is the resource the file belongs to.
	Path      string
	Timestamp int64
}

func (e Event) String() string {
	if e.Type == EventReconcile {
		return string(e.Type)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Key)
}

// ResourcePath returns the path of the resource owning a storage key:
// "a/b.metadata" and "a/b.data" both belong to "/a/b".
func ResourcePath(key string) string {
	dir, base := "", key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		dir, base = key[:i], key[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	return core.CleanPath(dir + "/" + base)
}

// WatchConfig tunes a Watcher.
type WatchConfig struct {
	// Pattern is a doublestar glob over storage keys, "**" when empty.
	Pattern  string
	Debounce time.Duration
	Logger   *slog.Logger
	// ErrorHandler receives watcher errors. They are logged when nil.
	ErrorHandler func(error)
}

// Watcher reports changes made to the files of a Storage by other
// processes or editors.
type Watcher struct {
	storage *Storage
	config  WatchConfig
	active  atomic.Bool
	events  atomic.Int64
}

// NewWatcher validates cfg and returns a watcher over s.
func NewWatcher(s *Storage, cfg WatchConfig) (*Watcher, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = "**"
	}
	if !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", cfg.Pattern)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{storage: s, config: cfg}, nil
}

// Active reports whether the event loop is running.
func (w *Watcher) Active() bool { return w.active.Load() }

// Watch starts the event loop. The returned channel is closed when ctx is
// done or the loop fails.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.recursiveAdd(watcher, w.storage.Path); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	_ = watcher.Add(filepath.Join(w.storage.Path, ".git"))

	out := make(chan Event)
	w.active.Store(true)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		return w.run(ctx, watcher, out)
	}, lifecycle.WithErrorHandler(w.handleError))
	return out, nil
}

// recursiveAdd watches dir and its subdirectories, skipping hidden ones.
func (w *Watcher) recursiveAdd(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if key, ok := w.key(p); ok && key != "" && w.storage.hidden(key) {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// key converts an absolute file name to a storage key.
func (w *Watcher) key(name string) (string, bool) {
	rel, err := filepath.Rel(w.storage.Path, name)
	if err != nil || !filepath.IsLocal(rel) && rel != "." {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) handleError(err error) {
	if w.config.ErrorHandler != nil {
		w.config.ErrorHandler(err)
		return
	}
	w.config.Logger.Error("watcher failed", "error", err)
}

// gitLockEvent reports whether event concerns .git/index.lock and, if so,
// whether git now holds the lock.
func gitLockEvent(event fsnotify.Event) (handled, locked bool) {
	if filepath.Base(event.Name) != "index.lock" || filepath.Base(filepath.Dir(event.Name)) != ".git" {
		return false, false
	}
	return true, event.Has(fsnotify.Create)
}

// mapEvent turns a filesystem event into a watcher event.
func (w *Watcher) mapEvent(watcher *fsnotify.Watcher, event fsnotify.Event) (Event, bool) {
	key, ok := w.key(event.Name)
	if !ok || key == "" || w.storage.hidden(key) {
		return Event{}, false
	}

	var t EventType
	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.recursiveAdd(watcher, event.Name); err != nil {
				w.handleError(err)
			}
			return Event{}, false
		}
		t = EventCreate
	case event.Has(fsnotify.Write):
		t = EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		t = EventDelete
	default:
		return Event{}, false
	}

	if match, _ := doublestar.Match(w.config.Pattern, key); !match {
		return Event{}, false
	}
	return Event{Type: t, Key: key, Path: ResourcePath(key), Timestamp: time.Now().Unix()}, true
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher, out chan<- Event) (err error) {
	logger := w.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			// The stack is only worth its size when debugging.
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer watcher.Close()

	d := newDebouncer(w.config.Debounce)
	send := func(e Event) {
		d.add(e.Key, func() {
			// out may be closed if the loop stopped while this was waiting.
			defer func() { _ = recover() }()
			select {
			case out <- e:
				w.events.Add(1)
			case <-ctx.Done():
			}
		})
	}
	defer close(out)
	defer w.active.Store(false)
	defer d.stopAndWait(5 * time.Second)

	var gitLocked bool
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if handled, locked := gitLockEvent(event); handled {
				if gitLocked && !locked {
					logger.Debug("git operations finished, reconciling")
					send(Event{Type: EventReconcile, Timestamp: time.Now().Unix()})
				} else if locked {
					logger.Debug("git operations detected, pausing watcher")
				}
				gitLocked = locked
				continue
			}
			if gitLocked {
				continue
			}
			if e, ok := w.mapEvent(watcher, event); ok {
				logger.Debug("event received", "type", e.Type, "key", e.Key)
				send(e)
			}

		case wErr, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleError(wErr)
		}
	}
}

// debouncer delays a callback per key until the key is quiet.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) add(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// stopAndWait cancels the pending callbacks and waits, up to timeout, for
// the running ones.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
