//go:build !linux && !darwin

// Package unix provides platform-specific signal sets for process-one.
package unix

import (
	"os"
	"syscall"
)

// ShutdownSignals end process-one. Only interrupt is delivered here.
var ShutdownSignals = []os.Signal{os.Interrupt}

// ReloadSignal is never delivered on this platform.
const ReloadSignal = syscall.SIGHUP

// AliveSignal probes a process without affecting it.
const AliveSignal = syscall.Signal(0)
