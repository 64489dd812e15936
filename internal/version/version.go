package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag. Local builds report a dev version.
	Version = "0.0.0-dev"
	// Commit is the short git SHA, or "none".
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns only the release tag.
func Short() string {
	return Version
}

// Full returns the release tag with commit, build time and Go runtime.
func Full() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// LogFields returns the build metadata as logger key-value pairs.
func LogFields() []any {
	return []any{"version", Version, "commit", Commit, "build_time", BuildTime}
}
