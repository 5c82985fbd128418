package initshim

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"vawter.tech/stopper"
)

// WatcherState is the state of a PathWatcher
type WatcherState int32

const (
	// WatcherIdle means no path is registered; the watcher waits for a
	// reload or stop
	WatcherIdle WatcherState = iota
	// WatcherWatching means a listener is subscribed to the watched dirs
	WatcherWatching
	// WatcherReloading means the listener was torn down and is being rebuilt
	WatcherReloading
	// WatcherStopped means the watcher loop has exited
	WatcherStopped
)

// String returns the string representation of a WatcherState
func (s WatcherState) String() string {
	switch s {
	case WatcherIdle:
		return "idle"
	case WatcherWatching:
		return "watching"
	case WatcherReloading:
		return "reloading"
	case WatcherStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Starter starts a unit. *Controller implements it.
type Starter interface {
	Start(ctx context.Context, name UnitName) error
}

// PathWatcher turns change notifications on watched paths into unit starts.
// It computes its subscription from the WatchSet each time it (re)builds
// its listener.
type PathWatcher struct {
	set     *WatchSet
	starter Starter
	listen  ListenFunc
	log     *zap.Logger

	reload chan struct{}
	state  atomic.Int32
}

// NewPathWatcher creates a PathWatcher. A nil ListenFunc means ListenFSNotify.
func NewPathWatcher(set *WatchSet, starter Starter, listen ListenFunc, log *zap.Logger) *PathWatcher {
	if listen == nil {
		listen = ListenFSNotify
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &PathWatcher{
		set:     set,
		starter: starter,
		listen:  listen,
		log:     log.Named("watcher"),
		reload:  make(chan struct{}, 1),
	}
	w.state.Store(int32(WatcherIdle))
	return w
}

// State returns the current state.
func (w *PathWatcher) State() WatcherState {
	return WatcherState(w.state.Load())
}

func (w *PathWatcher) setState(s WatcherState) {
	if old := WatcherState(w.state.Swap(int32(s))); old != s {
		w.log.Debug("state change", zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

// Reload tears down the current listener; the loop then rebuilds it from
// the WatchSet as it is now. Reload never blocks.
func (w *PathWatcher) Reload() {
	select {
	case w.reload <- struct{}{}:
	default:
	}
}

// Run is the watcher loop. It returns when sctx starts stopping.
func (w *PathWatcher) Run(sctx *stopper.Context) error {
	defer w.setState(WatcherStopped)

	backoff := time.Duration(0)
	for !sctx.IsStopping() {
		dirs := w.set.Dirs()
		if len(dirs) == 0 {
			w.setState(WatcherIdle)
			w.log.Info("no watched paths, idle")
			select {
			case <-sctx.Stopping():
				return nil
			case <-w.reload:
				w.setState(WatcherReloading)
				continue
			}
		}

		l, err := w.listen(sctx, dirs)
		if err != nil {
			backoff = nextBackoff(backoff)
			w.log.Warn("subscribing failed, retrying",
				zap.Strings("dirs", dirs), zap.Duration("backoff", backoff), zap.Error(err))
			timer := time.NewTimer(backoff)
			select {
			case <-sctx.Stopping():
				timer.Stop()
				return nil
			case <-w.reload:
				timer.Stop()
			case <-timer.C:
			}
			w.setState(WatcherReloading)
			continue
		}
		backoff = 0

		w.setState(WatcherWatching)
		w.log.Info("watching", zap.Strings("dirs", dirs))

		w.consume(sctx, l)

		if err := l.Close(); err != nil {
			w.log.Debug("closing listener", zap.Error(err))
		}
		w.setState(WatcherReloading)
	}
	return nil
}

// consume handles events until the watcher stops, a reload is requested or
// the listener goes away.
func (w *PathWatcher) consume(sctx *stopper.Context, l Listener) {
	for {
		select {
		case <-sctx.Stopping():
			return

		case <-w.reload:
			w.log.Info("reload requested")
			return

		case ev, ok := <-l.Events():
			if !ok {
				w.log.Warn("listener exited, rebuilding")
				return
			}
			w.handle(sctx, ev)

		case err, ok := <-l.Errors():
			if ok && err != nil {
				w.log.Warn("listener error", zap.Error(err))
			}
		}
	}
}

// handle processes one event to completion, including the unit start.
func (w *PathWatcher) handle(ctx context.Context, ev FileEvent) {
	path := ev.Path()
	unit, ok := w.set.Lookup(path)
	if !ok {
		w.log.Debug("ignoring unwatched path", zap.String("path", path), zap.String("kind", ev.Kind))
		return
	}

	w.log.Info("path triggered", zap.String("path", path), zap.String("kind", ev.Kind), zap.Stringer("unit", unit))
	if err := w.starter.Start(ctx, unit); err != nil {
		w.log.Warn("activating unit", zap.Stringer("unit", unit), zap.Error(err))
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d < DefaultBackoffMin {
		return DefaultBackoffMin
	}
	d *= 2
	if d > DefaultBackoffMax {
		return DefaultBackoffMax
	}
	return d
}

// WatcherHandle is a running PathWatcher task.
type WatcherHandle struct {
	watcher *PathWatcher
	sctx    *stopper.Context
}

// StartWatcher runs w in a new stopper context derived from ctx.
func StartWatcher(ctx context.Context, w *PathWatcher) *WatcherHandle {
	h := &WatcherHandle{
		watcher: w,
		sctx:    stopper.WithContext(ctx),
	}
	h.sctx.Go(w.Run)
	return h
}

// Watcher returns the watcher run by the handle.
func (h *WatcherHandle) Watcher() *PathWatcher {
	return h.watcher
}

// Stop stops the watcher and waits for its loop to exit. An event being
// handled is finished first; grace bounds how long before the context
// handed to that handler is cancelled.
func (h *WatcherHandle) Stop(grace time.Duration) error {
	h.sctx.Stop(grace)
	return h.sctx.Wait()
}
