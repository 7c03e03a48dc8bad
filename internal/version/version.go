// Package version carries the build stamp. The variables are overwritten at
// link time via -ldflags "-X ...".
package version

import (
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }

// Platform returns the os/arch pair this binary was built for.
func Platform() string { return runtime.GOOS + "/" + runtime.GOARCH }
