package initshim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, units map[string]string) (*Controller, *fakeExecutor, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range units {
		writeUnit(t, dir, name, content)
	}
	exec := newFakeExecutor()
	return NewController(NewStore(nil, dir), exec, nil), exec, dir
}

func TestControllerActions(t *testing.T) {
	ctl, exec, _ := newTestController(t, map[string]string{
		"app.service": "[Service]\nExecStart=/bin/app start\nExecStop=/bin/app stop\nExecReload=/bin/app reload\n",
	})
	ctx := context.Background()

	require.NoError(t, ctl.Start(ctx, "app.service"))
	require.NoError(t, ctl.Reload(ctx, "app.service"))
	require.NoError(t, ctl.Stop(ctx, "app.service"))
	require.NoError(t, ctl.Restart(ctx, "app.service"))

	assert.Equal(t, []string{
		"/bin/app start",
		"/bin/app reload",
		"/bin/app stop",
		"/bin/app stop",
		"/bin/app start",
	}, exec.Calls())
}

func TestControllerAbsentActionIsNoop(t *testing.T) {
	ctl, exec, _ := newTestController(t, map[string]string{
		"oneshot.service": "[Service]\nExecStart=/bin/oneshot\n",
	})
	ctx := context.Background()

	assert.NoError(t, ctl.Stop(ctx, "oneshot.service"))
	assert.NoError(t, ctl.Reload(ctx, "oneshot.service"))
	assert.NoError(t, ctl.Start(ctx, "missing.service"))
	assert.Empty(t, exec.Calls())

	require.NoError(t, ctl.Start(ctx, "oneshot.service"))
	assert.Equal(t, []string{"/bin/oneshot"}, exec.Calls())
}

func TestControllerFailure(t *testing.T) {
	ctl, exec, _ := newTestController(t, map[string]string{
		"app.service": "[Service]\nExecStart=/bin/app\nExecStop=-/bin/app-stop\n",
	})
	exec.failWith("/bin/app", &ExitError{Argv: []string{"/bin/app"}, Code: 3})
	exec.failWith("/bin/app-stop", &ExitError{Argv: []string{"/bin/app-stop"}, Code: 1})
	ctx := context.Background()

	err := ctl.Start(ctx, "app.service")
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, VerbStart, opErr.Op)
	assert.Equal(t, UnitName("app.service"), opErr.Unit)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)

	assert.NoError(t, ctl.Stop(ctx, "app.service"), "the - prefix ignores a failing exit status")
}

// A unit file that cannot be loaded is reported under the verb that asked
// for it.
func TestControllerLoadErrorCarriesVerb(t *testing.T) {
	ctl, exec, _ := newTestController(t, map[string]string{
		"bad.service": "[Service]\nExecStart /bin/nope\n",
	})
	ctx := context.Background()

	for verb, run := range map[Verb]func(context.Context, UnitName) error{
		VerbStart:  ctl.Start,
		VerbStop:   ctl.Stop,
		VerbReload: ctl.Reload,
	} {
		var opErr *OpError
		require.True(t, errors.As(run(ctx, "bad.service"), &opErr), verb.String())
		assert.Equal(t, verb, opErr.Op)
		assert.Equal(t, UnitName("bad.service"), opErr.Unit)
		var unitErr *UnitError
		assert.True(t, errors.As(opErr, &unitErr))
	}
	assert.Empty(t, exec.Calls())
}

// The next action after an edit runs the edited command.
func TestControllerSeesEdits(t *testing.T) {
	ctl, exec, dir := newTestController(t, map[string]string{
		"app.service": "[Service]\nExecStart=/bin/old\n",
	})
	ctx := context.Background()

	require.NoError(t, ctl.Start(ctx, "app.service"))
	writeUnit(t, dir, "app.service", "[Service]\nExecStart=/bin/new\n")
	require.NoError(t, ctl.Start(ctx, "app.service"))

	assert.Equal(t, []string{"/bin/old", "/bin/new"}, exec.Calls())
}

func TestControllerRestartReportsBoth(t *testing.T) {
	ctl, exec, _ := newTestController(t, map[string]string{
		"app.service": "[Service]\nExecStart=/bin/start\nExecStop=/bin/stop\n",
	})
	exec.failWith("/bin/stop", errors.New("boom"))

	err := ctl.Restart(context.Background(), "app.service")
	require.Error(t, err)
	assert.Equal(t, []string{"/bin/stop", "/bin/start"}, exec.Calls(), "start runs even when stop failed")
}
