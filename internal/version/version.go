// Package version exposes build-time version information.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags.
var (
	// GitVersion is the semantic version of the build.
	GitVersion = "v0.0.0-dev"
	// GitCommit is the git commit hash of the build.
	GitCommit = "unknown"
	// GitTreeState indicates whether the git tree was clean or dirty.
	GitTreeState = "unknown"
)

// GetVersionInfo returns a map of version metadata for display.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":      GitVersion,
		"gitCommit":    GitCommit,
		"gitTreeState": GitTreeState,
		"goVersion":    runtime.Version(),
		"platform":     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
