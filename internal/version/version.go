// Package version holds build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release tag, or a -dev suffix for local builds.
	Version = "v0.3.0-dev"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats version and build time for --version output.
func String() string {
	return fmt.Sprintf("%s (built %s)", Version, BuildTime)
}
