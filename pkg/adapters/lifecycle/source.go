// Package lifecycle exposes the filesystem watcher as a lifecycle.Source.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/vellum/pkg/adapters/fs"
)

type watchSource struct {
	watcher *fs.Watcher
	out     chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits the changes seen by
// watcher. Every fs.Event is a lifecycle.Event.
func NewSource(watcher *fs.Watcher) lifecycle.Source {
	return &watchSource{
		watcher: watcher,
		out:     make(chan lifecycle.Event),
	}
}

func (s *watchSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start begins watching. The event channel closes when ctx is done.
func (s *watchSource) Start(ctx context.Context) error {
	events, err := s.watcher.Watch(ctx)
	if err != nil {
		return err
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
