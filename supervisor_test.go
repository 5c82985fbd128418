package initshim

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type supervisorFixture struct {
	cfg      Config
	exec     *fakeExecutor
	notifier *fakeNotifier
	signals  chan os.Signal
	sup      *Supervisor
	done     chan error
}

func newSupervisorFixture(t *testing.T, managed UnitName) *supervisorFixture {
	t.Helper()
	unitDir := t.TempDir()
	writeUnit(t, unitDir, "app.service", "[Service]\nExecStart=/bin/app-start\nExecStop=/bin/app-stop\n")
	writeUnit(t, unitDir, "helper.service", "[Service]\nExecStart=/bin/helper\n")
	writeUnit(t, unitDir, "trigger.path", "[Path]\nPathModified=/data/trigger.flag\nUnit=helper.service\n")
	writeUnit(t, unitDir, "conf.path", "[Path]\nPathChanged=/etc/app/app.conf\nUnit=helper.service\n")

	f := &supervisorFixture{
		cfg: Config{
			UnitDirs:       []string{unitDir},
			RuntimeDir:     t.TempDir(),
			ManagedService: managed,
			Log:            LogConfig{Level: "debug", Format: "console"},
			Watcher:        WatcherConfig{StopGrace: time.Second},
		},
		exec:     newFakeExecutor(),
		notifier: newFakeNotifier(),
		signals:  make(chan os.Signal, 4),
		done:     make(chan error, 1),
	}
	f.sup = NewSupervisor(f.cfg, nil,
		WithExecutor(f.exec),
		WithSignals(f.signals),
		WithWatcherListenFunc(f.notifier.Listen),
	)
	return f
}

func (f *supervisorFixture) run(ctx context.Context) {
	go func() { f.done <- f.sup.Run(ctx) }()
}

func (f *supervisorFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.done:
		return err
	case <-time.After(waitFor):
		t.Fatal("supervisor did not return")
		return nil
	}
}

func (f *supervisorFixture) waitRunning(t *testing.T) *fakeListener {
	t.Helper()
	l := f.notifier.next(t)
	require.Eventually(t, func() bool { return f.sup.State() == SupervisorRunning }, waitFor, tick)
	return l
}

// Stopping process-one stops the managed service exactly once and no unit
// is started afterwards.
func TestSupervisorShutdownStopsManagedOnce(t *testing.T) {
	f := newSupervisorFixture(t, "app.service")
	f.run(context.Background())

	l := f.waitRunning(t)
	assert.Equal(t, []string{"/data", "/etc/app"}, l.dirs)
	require.Eventually(t, func() bool { return f.exec.Count("/bin/app-start") == 1 }, waitFor, tick)

	l.Send(FileEvent{Dir: "/data", Kind: "modify", Name: "trigger.flag"})
	require.Eventually(t, func() bool { return f.exec.Count("/bin/helper") == 1 }, waitFor, tick)

	f.signals <- syscall.SIGTERM
	require.NoError(t, f.wait(t))
	f.signals <- syscall.SIGINT

	assert.Equal(t, SupervisorStopped, f.sup.State())
	assert.True(t, l.Closed())
	assert.False(t, l.Send(FileEvent{Dir: "/data", Kind: "modify", Name: "trigger.flag"}))

	calls := f.exec.Calls()
	assert.Equal(t, 1, f.exec.Count("/bin/app-stop"))
	assert.Equal(t, "/bin/app-stop", calls[len(calls)-1], "nothing runs after the managed stop")
	assert.Equal(t, 1, f.exec.Count("/bin/app-start"), "the managed service is never restarted")

	_, err := os.Stat(NewPIDFile(f.cfg.RuntimeDir).Path)
	assert.True(t, os.IsNotExist(err), "pid file is removed on shutdown")
}

// A termination signal that is already pending when Run begins races the
// managed start. Whichever way it goes, the start never runs after the
// single stop.
func TestSupervisorEarlySignalNeverStartsAfterStop(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newSupervisorFixture(t, "app.service")
		f.signals <- syscall.SIGTERM
		f.run(context.Background())
		require.NoError(t, f.wait(t))

		// Give a start goroutine that lost the race time to misbehave.
		time.Sleep(5 * time.Millisecond)

		calls := f.exec.Calls()
		lastStart, firstStop := -1, slices.Index(calls, "/bin/app-stop")
		for j, c := range calls {
			if c == "/bin/app-start" {
				lastStart = j
			}
		}
		require.Equal(t, 1, f.exec.Count("/bin/app-stop"), "run %d: %v", i, calls)
		assert.LessOrEqual(t, f.exec.Count("/bin/app-start"), 1, "run %d: %v", i, calls)
		if lastStart >= 0 {
			assert.Less(t, lastStart, firstStop, "run %d: start ran after stop: %v", i, calls)
		}
	}
}

func TestSupervisorShutdownMethodBeforeStart(t *testing.T) {
	f := newSupervisorFixture(t, "app.service")
	f.sup.Shutdown()
	f.run(context.Background())
	require.NoError(t, f.wait(t))
	time.Sleep(5 * time.Millisecond)

	calls := f.exec.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "/bin/app-stop", calls[len(calls)-1])
	assert.Equal(t, 1, f.exec.Count("/bin/app-stop"))
}

func TestSupervisorContextCancel(t *testing.T) {
	f := newSupervisorFixture(t, "app.service")
	ctx, cancel := context.WithCancel(context.Background())
	f.run(ctx)

	f.waitRunning(t)
	require.Eventually(t, func() bool { return f.exec.Count("/bin/app-start") == 1 }, waitFor, tick)

	cancel()
	require.NoError(t, f.wait(t))
	assert.Equal(t, 1, f.exec.Count("/bin/app-stop"), "stop runs even though the context is done")
}

func TestSupervisorShutdownMethod(t *testing.T) {
	f := newSupervisorFixture(t, "")
	f.run(context.Background())
	f.waitRunning(t)

	f.sup.Shutdown()
	f.sup.Shutdown()
	require.NoError(t, f.wait(t))
	assert.Empty(t, f.exec.Calls())

	assert.Error(t, f.sup.Run(context.Background()), "a supervisor runs once")
}

func TestSupervisorWritesPIDFile(t *testing.T) {
	f := newSupervisorFixture(t, "")
	f.run(context.Background())
	f.waitRunning(t)

	data, err := os.ReadFile(NewPIDFile(f.cfg.RuntimeDir).Path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	f.sup.Shutdown()
	require.NoError(t, f.wait(t))
}

func TestSupervisorHangupAppliesSpool(t *testing.T) {
	f := newSupervisorFixture(t, "")
	f.run(context.Background())
	first := f.waitRunning(t)

	spool := NewSpool(f.cfg.RuntimeDir)
	require.NoError(t, spool.Append(Activation{Verb: "stop", Unit: "conf.path"}))
	f.signals <- syscall.SIGHUP

	second := f.notifier.next(t)
	assert.True(t, first.Closed())
	assert.Equal(t, []string{"/data"}, second.dirs)
	assert.False(t, f.sup.Paths().WatchSet().Has("conf.path"))

	queued, err := spool.Drain()
	require.NoError(t, err)
	assert.Empty(t, queued, "applied requests leave the spool")

	f.sup.Shutdown()
	require.NoError(t, f.wait(t))
}

func TestSupervisorHangupWithoutQueueReloads(t *testing.T) {
	f := newSupervisorFixture(t, "")
	f.run(context.Background())
	first := f.waitRunning(t)
	w := f.sup.Paths().Watcher()

	f.signals <- syscall.SIGHUP

	second := f.notifier.next(t)
	assert.True(t, first.Closed())
	assert.Equal(t, first.dirs, second.dirs)
	assert.Same(t, w, f.sup.Paths().Watcher())

	f.sup.Shutdown()
	require.NoError(t, f.wait(t))
}

func TestSupervisorDrainsSpoolAtStart(t *testing.T) {
	f := newSupervisorFixture(t, "")
	require.NoError(t, NewSpool(f.cfg.RuntimeDir).Append(Activation{Verb: "stop", Unit: "trigger.path"}))
	require.NoError(t, NewSpool(f.cfg.RuntimeDir).Append(Activation{Verb: "stop", Unit: "conf.path"}))

	f.run(context.Background())

	// Each queued stop replaces the watcher, possibly before it subscribed.
	require.Eventually(t, func() bool { return f.sup.State() == SupervisorRunning }, waitFor, tick)
	require.Eventually(t, func() bool {
		w := f.sup.Paths().Watcher()
		return w != nil && w.State() == WatcherIdle
	}, waitFor, tick)
	assert.Zero(t, f.sup.Paths().WatchSet().Len())

	f.sup.Shutdown()
	require.NoError(t, f.wait(t))
}

func TestSupervisorStateString(t *testing.T) {
	assert.Equal(t, "starting", SupervisorStarting.String())
	assert.Equal(t, "running", SupervisorRunning.String())
	assert.Equal(t, "shutting-down", SupervisorShuttingDown.String())
	assert.Equal(t, "stopped", SupervisorStopped.String())
}
