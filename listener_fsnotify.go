//go:build linux || darwin

package initshim

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// fsListener adapts an fsnotify watcher to the Listener interface
type fsListener struct {
	sctx   *stopper.Context
	events chan FileEvent
	errors chan error
}

// ListenFSNotify subscribes to modify-class events on dirs using fsnotify.
func ListenFSNotify(ctx context.Context, dirs []string) (Listener, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}

	l := &fsListener{
		sctx:   stopper.WithContext(ctx),
		events: make(chan FileEvent, DefaultEventBuffer),
		errors: make(chan error, 1),
	}

	// Register watcher cleanup with stopper
	l.sctx.Defer(func() {
		_ = watcher.Close()
		close(l.events)
	})

	l.sctx.Go(func(sctx *stopper.Context) error {
		// A failed fsnotify watcher stops the listener too, so the
		// consumer sees Events close and rebuilds.
		defer sctx.Stop(0)

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				kind := eventKind(event)
				if kind == "" {
					continue
				}
				fe := FileEvent{
					Dir:  filepath.Dir(event.Name),
					Kind: kind,
					Name: filepath.Base(event.Name),
				}
				select {
				case l.events <- fe:
				case <-sctx.Stopping():
					return nil
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				select {
				case l.errors <- err:
				default:
				}
			}
		}
		return nil
	})

	return l, nil
}

// eventKind maps modify-class fsnotify operations to a kind and returns ""
// for everything else.
func eventKind(event fsnotify.Event) string {
	switch {
	case event.Has(fsnotify.Write):
		return "modify"
	case event.Has(fsnotify.Create):
		return "create"
	default:
		return ""
	}
}

func (l *fsListener) Events() <-chan FileEvent {
	return l.events
}

func (l *fsListener) Errors() <-chan error {
	return l.errors
}

func (l *fsListener) Close() error {
	l.sctx.Stop(100 * time.Millisecond)
	return l.sctx.Wait()
}
