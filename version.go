package initshim

import "runtime"

// Version is the current version of initshim
const Version = "0.3.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Compat names the command surface initshim stands in for
	Compat string
	// Platform is GOOS/GOARCH of the running binary
	Platform string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Compat:   "systemd init/systemctl subset",
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}
