package initshim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/axondata/go-initshim/internal/unix"
)

// SupervisorState is the lifecycle state of process-one
type SupervisorState int32

const (
	// SupervisorStarting means Run has not finished starting up
	SupervisorStarting SupervisorState = iota
	// SupervisorRunning means the managed service was started and signals are handled
	SupervisorRunning
	// SupervisorShuttingDown means the single shutdown sequence is in progress
	SupervisorShuttingDown
	// SupervisorStopped means Run has returned or is about to
	SupervisorStopped
)

// String returns the string representation of a SupervisorState
func (s SupervisorState) String() string {
	switch s {
	case SupervisorStarting:
		return "starting"
	case SupervisorRunning:
		return "running"
	case SupervisorShuttingDown:
		return "shutting-down"
	case SupervisorStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Supervisor is process-one. It owns the unit Store, the Controller, the
// PathManager and the Multiplexer that serializes every change to them.
type Supervisor struct {
	cfg    Config
	store  *Store
	exec   Executor
	ctl    *Controller
	paths  *PathManager
	mux    *Multiplexer
	spool  *Spool
	pid    *PIDFile
	reaper *Reaper
	log    *zap.Logger

	signals    <-chan os.Signal
	listen     ListenFunc
	state      atomic.Int32
	started    atomic.Bool
	abortStart func()
	shutdownCh chan struct{}
	stopOnce   sync.Once
	doneOnce   sync.Once
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithExecutor replaces the ExecExecutor used for unit actions
func WithExecutor(e Executor) SupervisorOption {
	return func(s *Supervisor) {
		s.exec = e
	}
}

// WithSignals feeds signals from ch instead of installing process signal
// handlers
func WithSignals(ch <-chan os.Signal) SupervisorOption {
	return func(s *Supervisor) {
		s.signals = ch
	}
}

// WithWatcherListenFunc sets how the path watcher subscribes to directories
func WithWatcherListenFunc(fn ListenFunc) SupervisorOption {
	return func(s *Supervisor) {
		s.listen = fn
	}
}

// NewSupervisor wires the components described by cfg.
func NewSupervisor(cfg Config, log *zap.Logger, opts ...SupervisorOption) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Supervisor{
		cfg:        cfg,
		spool:      NewSpool(cfg.RuntimeDir),
		pid:        NewPIDFile(cfg.RuntimeDir),
		log:        log.Named("init"),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = &ExecExecutor{}
	}
	if cfg.Reap || os.Getpid() == 1 {
		s.reaper = NewReaper(log)
	}

	s.store = NewStore(log, cfg.UnitDirs...)
	s.ctl = NewController(s.store, s.exec, log)
	s.paths = NewPathManager(s.store, s.ctl, log,
		WithListenFunc(s.listen),
		WithStopGrace(cfg.Watcher.StopGrace),
	)
	s.mux = NewMultiplexer(s.ctl, s.paths, log)
	return s
}

// State returns the lifecycle state.
func (s *Supervisor) State() SupervisorState {
	return SupervisorState(s.state.Load())
}

func (s *Supervisor) setState(st SupervisorState) {
	s.state.Store(int32(st))
	s.log.Debug("state change", zap.Stringer("state", st))
}

// Multiplexer returns the control surface bound to this process.
func (s *Supervisor) Multiplexer() *Multiplexer {
	return s.mux
}

// Paths returns the path manager.
func (s *Supervisor) Paths() *PathManager {
	return s.paths
}

// Shutdown asks Run to shut down as if a termination signal arrived.
func (s *Supervisor) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// Run starts process-one and blocks until a shutdown signal, a Shutdown
// call or ctx cancellation. The managed service is stopped exactly once on
// the way out and never restarted. A nil return means a clean shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("supervisor already ran")
	}

	signals, stopSignals := s.installSignals()

	if err := s.pid.Write(os.Getpid()); err != nil {
		s.log.Warn("writing pid file, systemctl cannot reach this process", zap.String("path", s.pid.Path), zap.Error(err))
	}

	bg := context.WithoutCancel(ctx)
	reapCtx, stopReaper := context.WithCancel(bg)
	defer stopReaper()
	s.startReaper(reapCtx)

	if err := s.paths.LoadAll(); err != nil {
		s.log.Warn("some path units failed to load", zap.Error(err))
	}
	if err := s.paths.Restart(bg); err != nil {
		stopSignals()
		_ = s.pid.Remove()
		s.setState(SupervisorStopped)
		return fmt.Errorf("starting path watcher: %w", err)
	}

	s.applyQueued(bg, false)

	s.setState(SupervisorRunning)
	if s.cfg.ManagedService != "" {
		startCtx, cancelStart := context.WithCancel(bg)
		gate := &spawnGate{}
		s.abortStart = func() {
			cancelStart()
			gate.close()
		}
		go func() {
			err := s.ctl.Start(withSpawnGate(startCtx, gate), s.cfg.ManagedService)
			switch {
			case err == nil:
			case errors.Is(err, ErrShuttingDown), errors.Is(err, context.Canceled):
				s.log.Info("managed service start skipped, shutting down", zap.Stringer("unit", s.cfg.ManagedService))
			default:
				s.log.Warn("managed service start failed", zap.Stringer("unit", s.cfg.ManagedService), zap.Error(err))
			}
		}()
	} else {
		s.log.Info("no managed service configured")
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context done, shutting down")
			return s.shutdown(bg, stopSignals)

		case <-s.shutdownCh:
			s.log.Info("shutdown requested")
			return s.shutdown(bg, stopSignals)

		case sig := <-signals:
			if sig == unix.ReloadSignal {
				s.log.Info("reload signal received")
				s.applyQueued(bg, true)
				continue
			}
			s.log.Info("termination signal received", zap.Stringer("signal", sig))
			return s.shutdown(bg, stopSignals)
		}
	}
}

func (s *Supervisor) installSignals() (<-chan os.Signal, func()) {
	if s.signals != nil {
		return s.signals, func() {}
	}
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, append(append([]os.Signal{}, unix.ShutdownSignals...), unix.ReloadSignal)...)
	return ch, func() { signal.Stop(ch) }
}

func (s *Supervisor) startReaper(ctx context.Context) {
	if s.reaper == nil {
		return
	}
	if err := s.reaper.Run(ctx); err != nil {
		s.log.Warn("zombie reaping unavailable", zap.Error(err))
		return
	}
	if ee, ok := s.exec.(*ExecExecutor); ok {
		ee.Spawner = s.reaper
	}
	s.log.Info("reaping orphaned processes")
}

// applyQueued applies activations queued by systemctl invocations. With
// nothing queued and reload set it reloads the watcher instead.
func (s *Supervisor) applyQueued(ctx context.Context, reload bool) {
	queued, err := s.spool.Drain()
	if err != nil {
		s.log.Warn("reading activation spool", zap.String("path", s.spool.Path), zap.Error(err))
	}
	if len(queued) == 0 {
		if !reload {
			return
		}
		if err := s.paths.ReloadPaths(ctx); err != nil {
			s.log.Warn("reloading watcher", zap.Error(err))
		}
		return
	}
	for _, a := range queued {
		s.mux.Dispatch(ctx, a.Verb, string(a.Unit))
	}
}

// shutdown runs at most once: handlers are uninstalled, the watcher is
// stopped and the managed start is fenced off so nothing else gets started,
// then the managed service is stopped.
func (s *Supervisor) shutdown(ctx context.Context, stopSignals func()) error {
	s.doneOnce.Do(func() {
		s.setState(SupervisorShuttingDown)
		stopSignals()

		if err := s.paths.Close(); err != nil {
			s.log.Warn("stopping path watcher", zap.Error(err))
		}
		// Once abortStart returns the managed start has either spawned or
		// never will.
		if s.abortStart != nil {
			s.abortStart()
		}
		if s.cfg.ManagedService != "" {
			if err := s.ctl.Stop(ctx, s.cfg.ManagedService); err != nil {
				s.log.Warn("managed service stop failed", zap.Stringer("unit", s.cfg.ManagedService), zap.Error(err))
			}
		}
		if err := s.pid.Remove(); err != nil {
			s.log.Warn("removing pid file", zap.Error(err))
		}
		s.setState(SupervisorStopped)
		s.log.Info("stopped")
	})
	return nil
}
