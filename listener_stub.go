//go:build !linux && !darwin

package initshim

import (
	"context"
	"errors"
)

// ListenFSNotify - not supported on this platform
func ListenFSNotify(ctx context.Context, dirs []string) (Listener, error) {
	return nil, errors.New("path watching not supported on this platform")
}
