package initshim

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/axondata/go-initshim/internal/unix"
)

// RemoteActivator is the PathActivator of a standalone systemctl
// invocation. Requests are queued in the Spool and process-one is
// signalled to apply them. Without a live process-one the request stays
// queued and is applied on its next start.
type RemoteActivator struct {
	spool *Spool
	pid   *PIDFile
	log   *zap.Logger
}

// NewRemoteActivator creates a RemoteActivator for runtimeDir.
func NewRemoteActivator(runtimeDir string, log *zap.Logger) *RemoteActivator {
	if log == nil {
		log = zap.NewNop()
	}
	return &RemoteActivator{
		spool: NewSpool(runtimeDir),
		pid:   NewPIDFile(runtimeDir),
		log:   log.Named("remote"),
	}
}

// StartPath queues a start of the path unit.
func (r *RemoteActivator) StartPath(ctx context.Context, name UnitName) error {
	return r.submit(VerbStart, name)
}

// StopPath queues a stop of the path unit.
func (r *RemoteActivator) StopPath(ctx context.Context, name UnitName) error {
	return r.submit(VerbStop, name)
}

// ReloadPaths signals process-one without queueing anything, which makes it
// reload its watcher.
func (r *RemoteActivator) ReloadPaths(ctx context.Context) error {
	return r.notify()
}

func (r *RemoteActivator) submit(verb Verb, name UnitName) error {
	if err := r.spool.Append(Activation{Verb: verb.String(), Unit: name}); err != nil {
		return &OpError{Op: verb, Unit: name, Err: err}
	}
	r.log.Info("queued path activation", zap.Stringer("verb", verb), zap.Stringer("unit", name))
	if err := r.notify(); err != nil {
		return &OpError{Op: verb, Unit: name, Err: err}
	}
	return nil
}

func (r *RemoteActivator) notify() error {
	pid, err := r.pid.Read()
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSupervisor, err)
	}
	if err := proc.Signal(unix.AliveSignal); err != nil {
		return fmt.Errorf("%w: pid %d: %v", ErrNoSupervisor, pid, err)
	}
	if err := proc.Signal(unix.ReloadSignal); err != nil {
		return fmt.Errorf("signalling pid %d: %w", pid, err)
	}
	r.log.Debug("notified supervisor", zap.Int("pid", pid))
	return nil
}
