// dlxt - parallel downloader and archive extractor
package main

import (
	"os"

	"github.com/rescale/dlxt/internal/cli"
	"github.com/rescale/dlxt/internal/version"
)

// Version information, overridden by ldflags in release builds
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
