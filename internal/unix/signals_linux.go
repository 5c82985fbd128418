//go:build linux

// Package unix provides platform-specific signal sets for process-one.
package unix

import (
	"os"
	"syscall"
)

// ShutdownSignals end process-one.
var ShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// ReloadSignal asks process-one to apply queued activations.
const ReloadSignal = syscall.SIGHUP

// AliveSignal probes a process without affecting it.
const AliveSignal = syscall.Signal(0)
