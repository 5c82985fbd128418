//go:build !linux

package initshim

import (
	"context"
	"errors"
	"os/exec"

	"go.uber.org/zap"
)

// Reaper is only functional on linux.
type Reaper struct{}

// NewReaper creates a Reaper.
func NewReaper(log *zap.Logger) *Reaper {
	return &Reaper{}
}

// Run - not supported on this platform
func (r *Reaper) Run(ctx context.Context) error {
	return errors.New("reaping not supported on this platform")
}

// Spawn starts cmd and waits for it with os/exec.
func (r *Reaper) Spawn(cmd *exec.Cmd) (<-chan int, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	ch := make(chan int, 1)
	go func() {
		_ = cmd.Wait()
		ch <- cmd.ProcessState.ExitCode()
	}()
	return ch, nil
}
