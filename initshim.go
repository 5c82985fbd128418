package initshim

import (
	"strings"
	"time"
)

// Unit directory and runtime file constants
const (
	// ServiceSuffix is the unit name suffix for service units
	ServiceSuffix = ".service"

	// PathSuffix is the unit name suffix for path units
	PathSuffix = ".path"

	// DefaultConfigFile is the default location of the initshim config file
	DefaultConfigFile = "/etc/initshim/config.yaml"

	// DefaultRuntimeDir holds the PID file and the activation spool
	DefaultRuntimeDir = "/run/initshim"

	// PIDFileName is the name of the process-one PID file inside the runtime dir
	PIDFileName = "initshim.pid"

	// SpoolFileName is the name of the activation spool inside the runtime dir
	SpoolFileName = "activations.yaml"

	// DefaultWatcherStopGrace is how long a stopping watcher may take to
	// drain before its context is cancelled
	DefaultWatcherStopGrace = 2 * time.Second

	// DefaultBackoffMin is the minimum delay before re-creating a listener
	// that failed to subscribe
	DefaultBackoffMin = 10 * time.Millisecond

	// DefaultBackoffMax is the maximum delay before re-creating a listener
	DefaultBackoffMax = 5 * time.Second

	// DefaultEventBuffer is the capacity of a listener's event channel
	DefaultEventBuffer = 16
)

// DefaultUnitDirs lists the directories searched for unit files, highest
// precedence first.
var DefaultUnitDirs = []string{
	"/etc/systemd/system",
	"/run/systemd/system",
	"/lib/systemd/system",
	"/usr/lib/systemd/system",
}

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644
)

// Verb represents a control verb accepted by the multiplexer
type Verb int

const (
	// VerbUnknown represents any verb the multiplexer does not recognise
	VerbUnknown Verb = iota
	// VerbStart starts a service or activates a path unit
	VerbStart
	// VerbStop stops a service or deactivates a path unit
	VerbStop
	// VerbReload runs a service's reload action
	VerbReload
	// VerbRestart runs a service's stop action followed by its start action
	VerbRestart
	// VerbDaemonReload is accepted and ignored
	VerbDaemonReload
	// VerbDaemonReexec is accepted and ignored
	VerbDaemonReexec
	// VerbIsActive is accepted and ignored
	VerbIsActive
	// VerbIsEnabled is accepted and ignored
	VerbIsEnabled
	// VerbEnable is accepted and ignored
	VerbEnable
	// VerbDisable is accepted and ignored
	VerbDisable
	// VerbStatus is accepted and ignored
	VerbStatus
)

// Verb string constants
const (
	verbUnknownStr      = "unknown"
	verbStartStr        = "start"
	verbStopStr         = "stop"
	verbReloadStr       = "reload"
	verbRestartStr      = "restart"
	verbDaemonReloadStr = "daemon-reload"
	verbDaemonReexecStr = "daemon-reexec"
	verbIsActiveStr     = "is-active"
	verbIsEnabledStr    = "is-enabled"
	verbEnableStr       = "enable"
	verbDisableStr      = "disable"
	verbStatusStr       = "status"
)

// String returns the string representation of a Verb
func (v Verb) String() string {
	switch v {
	case VerbStart:
		return verbStartStr
	case VerbStop:
		return verbStopStr
	case VerbReload:
		return verbReloadStr
	case VerbRestart:
		return verbRestartStr
	case VerbDaemonReload:
		return verbDaemonReloadStr
	case VerbDaemonReexec:
		return verbDaemonReexecStr
	case VerbIsActive:
		return verbIsActiveStr
	case VerbIsEnabled:
		return verbIsEnabledStr
	case VerbEnable:
		return verbEnableStr
	case VerbDisable:
		return verbDisableStr
	case VerbStatus:
		return verbStatusStr
	default:
		return verbUnknownStr
	}
}

// ParseVerb maps a command-line verb to a Verb. Unrecognised verbs map to
// VerbUnknown rather than an error.
func ParseVerb(s string) Verb {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case verbStartStr:
		return VerbStart
	case verbStopStr:
		return VerbStop
	case verbReloadStr:
		return VerbReload
	case verbRestartStr:
		return VerbRestart
	case verbDaemonReloadStr:
		return VerbDaemonReload
	case verbDaemonReexecStr:
		return VerbDaemonReexec
	case verbIsActiveStr:
		return VerbIsActive
	case verbIsEnabledStr:
		return VerbIsEnabled
	case verbEnableStr:
		return VerbEnable
	case verbDisableStr:
		return VerbDisable
	case verbStatusStr:
		return VerbStatus
	default:
		return VerbUnknown
	}
}

// IsNoop reports whether the verb is accepted without doing anything
func (v Verb) IsNoop() bool {
	switch v {
	case VerbStart, VerbStop, VerbReload, VerbRestart:
		return false
	default:
		return true
	}
}
