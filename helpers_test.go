package initshim

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/renameio/v2"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// writeUnit writes a unit file into dir.
func writeUnit(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, renameio.WriteFile(path, []byte(content), FileMode))
	return path
}

// fakeExecutor records the argv of every command it is asked to run. Like
// ExecExecutor it records nothing once the context or its spawn gate says
// no.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{fail: make(map[string]error)}
}

func (f *fakeExecutor) Run(ctx context.Context, cmd Command) error {
	line := strings.Join(cmd.Argv, " ")
	return gated(ctx, func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, line)
		return f.fail[line]
	})
}

func (f *fakeExecutor) failWith(line string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[line] = err
}

func (f *fakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeExecutor) Count(line string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == line {
			n++
		}
	}
	return n
}

// fakeListener is a Listener fed by the test.
type fakeListener struct {
	dirs   []string
	events chan FileEvent
	errors chan error

	mu     sync.Mutex
	closed bool
}

func newFakeListener(dirs []string) *fakeListener {
	return &fakeListener{
		dirs:   dirs,
		events: make(chan FileEvent, DefaultEventBuffer),
		errors: make(chan error, 1),
	}
}

// Send delivers an event; it reports false once the listener is closed.
func (l *fakeListener) Send(ev FileEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.events <- ev
	return true
}

func (l *fakeListener) Events() <-chan FileEvent { return l.events }
func (l *fakeListener) Errors() <-chan error     { return l.errors }

func (l *fakeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.events)
	}
	return nil
}

func (l *fakeListener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// fakeNotifier hands out fakeListeners and publishes each subscription.
type fakeNotifier struct {
	subs chan *fakeListener

	mu    sync.Mutex
	fails int
	count int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{subs: make(chan *fakeListener, 16)}
}

// failNext makes the next n subscriptions fail.
func (n *fakeNotifier) failNext(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fails = count
}

func (n *fakeNotifier) Listen(ctx context.Context, dirs []string) (Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails > 0 {
		n.fails--
		return nil, errors.New("subscription refused")
	}
	n.count++
	l := newFakeListener(dirs)
	n.subs <- l
	return l, nil
}

func (n *fakeNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

// next waits for the next subscription.
func (n *fakeNotifier) next(t *testing.T) *fakeListener {
	t.Helper()
	select {
	case l := <-n.subs:
		return l
	case <-time.After(waitFor):
		t.Fatal("timeout waiting for a listener subscription")
		return nil
	}
}

// recordStarter records started units.
type recordStarter struct {
	mu      sync.Mutex
	started []UnitName
}

func (r *recordStarter) Start(ctx context.Context, name UnitName) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
	return nil
}

func (r *recordStarter) Started() []UnitName {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.started)
}
