package version

import "runtime"

var (
	AppName     = "server-warden"
	AppFullName = "Server Warden Discord Bot"
	GoVersion   = runtime.Version()

	// BuildDate is set via -ldflags at release time.
	BuildDate = "unknown"
)
