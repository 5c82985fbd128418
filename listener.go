package initshim

import (
	"context"
	"strings"
)

// FileEvent is one change notification for a file inside a watched directory.
type FileEvent struct {
	// Dir is the watched directory the event was reported for
	Dir string
	// Kind is the notification kind, e.g. "modify" or "create"
	Kind string
	// Name is the file name relative to Dir
	Name string
}

// Path returns the candidate path matched against the WatchSet.
func (e FileEvent) Path() string {
	return strings.TrimSuffix(e.Dir, "/") + "/" + e.Name
}

// Listener is one subscription to change notifications on a fixed set of
// directories. A listener cannot be resubscribed; close it and create a new
// one instead.
type Listener interface {
	// Events delivers notifications in order. It is closed once the
	// listener has stopped, whether through Close or a failure.
	Events() <-chan FileEvent
	// Errors delivers non-fatal notification errors.
	Errors() <-chan error
	// Close cancels the subscription. It is safe to call more than once.
	Close() error
}

// ListenFunc subscribes to the given directories.
type ListenFunc func(ctx context.Context, dirs []string) (Listener, error)
