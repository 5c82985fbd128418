package initshim

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Executor runs unit actions.
type Executor interface {
	// Run executes the command and blocks until it exits.
	Run(ctx context.Context, cmd Command) error
}

// Spawner starts a command and reports its exit code once reaped. The
// linux Reaper implements it so that PID-1 reaping and command waiting
// never compete for the same child.
//
// A Spawner never calls cmd.Wait, so the standard streams of cmd must be
// *os.File values; os/exec only copies other readers and writers from
// within Wait.
type Spawner interface {
	Spawn(cmd *exec.Cmd) (<-chan int, error)
}

// ExecExecutor is the default Executor that uses os/exec. Commands inherit
// the current environment and standard streams unless overridden.
type ExecExecutor struct {
	// Env is appended to the inherited environment
	Env []string
	// Stdin, Stdout and Stderr default to the process's own streams. They
	// must be *os.File values when a Spawner is set.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Spawner, if set, starts and waits for the command instead of os/exec
	Spawner Spawner
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Argv []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Argv[0], e.Code)
}

// spawnGate orders process spawns against a shutdown. Once closed no
// command carrying the gate in its context is spawned, and close returns
// only after a spawn already in progress has finished.
type spawnGate struct {
	mu     sync.Mutex
	closed bool
}

type spawnGateKey struct{}

func withSpawnGate(ctx context.Context, g *spawnGate) context.Context {
	return context.WithValue(ctx, spawnGateKey{}, g)
}

func (g *spawnGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// gated runs spawn unless ctx is done or its gate is closed.
func gated(ctx context.Context, spawn func() error) error {
	g, _ := ctx.Value(spawnGateKey{}).(*spawnGate)
	if g == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return spawn()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrShuttingDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return spawn()
}

func (e *ExecExecutor) command(c Command) *exec.Cmd {
	cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if e.Stdin != nil {
		cmd.Stdin = e.Stdin
	}
	if e.Stdout != nil {
		cmd.Stdout = e.Stdout
	}
	if e.Stderr != nil {
		cmd.Stderr = e.Stderr
	}
	return cmd
}

func fileStreams(cmd *exec.Cmd) bool {
	_, in := cmd.Stdin.(*os.File)
	_, out := cmd.Stdout.(*os.File)
	_, errOut := cmd.Stderr.(*os.File)
	return in && out && errOut
}

// Run implements Executor. The context is only checked before the command
// starts; a running action is never killed on cancellation.
func (e *ExecExecutor) Run(ctx context.Context, c Command) error {
	if c.IsZero() {
		return nil
	}

	cmd := e.command(c)

	if e.Spawner != nil {
		if !fileStreams(cmd) {
			return ErrSpawnerStreams
		}
		var done <-chan int
		err := gated(ctx, func() error {
			var err error
			done, err = e.Spawner.Spawn(cmd)
			return err
		})
		if err != nil {
			return err
		}
		if code := <-done; code != 0 {
			return &ExitError{Argv: c.Argv, Code: code}
		}
		return nil
	}

	if err := gated(ctx, cmd.Start); err != nil {
		return err
	}
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ExitError{Argv: c.Argv, Code: exitErr.ExitCode()}
		}
		return err
	}
	return nil
}
