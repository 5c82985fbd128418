//go:build linux

package initshim

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Reaper collects exit statuses of every child re-parented to this process.
// Commands started through Spawn are registered under the same lock that
// guards reaping, so their status is delivered to the waiting caller
// instead of being discarded with the orphans.
type Reaper struct {
	mu      sync.Mutex
	waiters map[int]chan int
	log     *zap.Logger
}

// NewReaper creates a Reaper. Call Run to start reaping.
func NewReaper(log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		waiters: make(map[int]chan int),
		log:     log.Named("reaper"),
	}
}

// Run makes the process a child subreaper and reaps on SIGCHLD until ctx is
// cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	if os.Getpid() != 1 {
		if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
			return err
		}
	}

	sig := make(chan os.Signal, 16)
	signal.Notify(sig, unix.SIGCHLD)

	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				r.reap()
			}
		}
	}()
	return nil
}

// Spawn starts cmd and returns a channel that receives its exit code. cmd
// is never waited on, so its standard streams must be *os.File values.
func (r *Reaper) Spawn(cmd *exec.Cmd) (<-chan int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	ch := make(chan int, 1)
	r.waiters[cmd.Process.Pid] = ch
	_ = cmd.Process.Release()
	return ch, nil
}

func (r *Reaper) reap() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch {
		case pid > 0:
			code := status.ExitStatus()
			if status.Signaled() {
				code = 128 + int(status.Signal())
			}
			if ch, ok := r.waiters[pid]; ok {
				delete(r.waiters, pid)
				ch <- code
				continue
			}
			r.log.Debug("reaped orphan", zap.Int("pid", pid), zap.Int("status", code))
		case err == unix.EINTR:
			// interrupted: retry
		case err == unix.ECHILD || pid == 0:
			return // no more ready children; wait for next SIGCHLD
		default:
			r.log.Warn("wait4 failed", zap.Error(err))
			return
		}
	}
}
