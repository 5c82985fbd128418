package initshim

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PathActivator starts and stops path units. PathManager is the in-process
// implementation; RemoteActivator forwards to a running process-one.
type PathActivator interface {
	StartPath(ctx context.Context, name UnitName) error
	StopPath(ctx context.Context, name UnitName) error
	ReloadPaths(ctx context.Context) error
}

// PathManager owns the WatchSet and the single live watcher. Every
// mutation of the WatchSet stops the running watcher, waits for it to exit
// and starts a fresh one.
type PathManager struct {
	store   *Store
	starter Starter
	listen  ListenFunc
	grace   time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	set    *WatchSet
	handle *WatcherHandle
	closed bool
}

// PathManagerOption configures a PathManager
type PathManagerOption func(*PathManager)

// WithListenFunc sets how watchers subscribe to directories
func WithListenFunc(fn ListenFunc) PathManagerOption {
	return func(m *PathManager) {
		m.listen = fn
	}
}

// WithStopGrace sets the grace period given to a stopping watcher
func WithStopGrace(d time.Duration) PathManagerOption {
	return func(m *PathManager) {
		m.grace = d
	}
}

// NewPathManager creates a PathManager with an empty WatchSet.
func NewPathManager(store *Store, starter Starter, log *zap.Logger, opts ...PathManagerOption) *PathManager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &PathManager{
		store:   store,
		starter: starter,
		grace:   DefaultWatcherStopGrace,
		log:     log.Named("paths"),
		set:     NewWatchSet(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WatchSet returns the managed WatchSet.
func (m *PathManager) WatchSet() *WatchSet {
	return m.set
}

// Watcher returns the running watcher, or nil.
func (m *PathManager) Watcher() *PathWatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil
	}
	return m.handle.Watcher()
}

// LoadAll registers every path unit in the Store without restarting the
// watcher. Units that fail to load are skipped and reported.
func (m *PathManager) LoadAll() error {
	units, err := m.store.ListPathUnits()
	for _, pu := range units {
		m.set.Add(pu)
		m.log.Info("registered path unit", zap.Stringer("unit", pu.Name), zap.String("path", pu.Path), zap.Stringer("activates", pu.Unit))
	}
	return err
}

// StartPath loads the path unit, adds it to the WatchSet and restarts the
// watcher. A unit without a file changes nothing.
func (m *PathManager) StartPath(ctx context.Context, name UnitName) error {
	pu, err := m.store.LoadPath(name)
	if err != nil {
		return &OpError{Op: VerbStart, Unit: name, Err: err}
	}
	if !pu.Found() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.set.Remove(name)
	m.set.Add(pu)
	m.log.Info("path unit started", zap.Stringer("unit", name), zap.String("path", pu.Path), zap.Stringer("activates", pu.Unit))
	return m.restartLocked(ctx)
}

// StopPath removes the path unit's entries and restarts the watcher.
func (m *PathManager) StopPath(ctx context.Context, name UnitName) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.set.Remove(name)
	m.log.Info("path unit stopped", zap.Stringer("unit", name), zap.Int("removed", n))
	return m.restartLocked(ctx)
}

// ReloadPaths asks the running watcher to rebuild its listener.
func (m *PathManager) ReloadPaths(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		m.handle.Watcher().Reload()
	}
	return nil
}

// Restart stops the running watcher, if any, and starts a new one.
func (m *PathManager) Restart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restartLocked(ctx)
}

func (m *PathManager) restartLocked(ctx context.Context) error {
	if m.closed {
		return ErrShuttingDown
	}
	if err := m.stopLocked(); err != nil {
		m.log.Warn("previous watcher exited with error", zap.Error(err))
	}
	// The watcher outlives the request that restarted it; Close ends it.
	w := NewPathWatcher(m.set, m.starter, m.listen, m.log)
	m.handle = StartWatcher(context.WithoutCancel(ctx), w)
	return nil
}

func (m *PathManager) stopLocked() error {
	if m.handle == nil {
		return nil
	}
	err := m.handle.Stop(m.grace)
	m.handle = nil
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the watcher for good.
func (m *PathManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return m.stopLocked()
}
