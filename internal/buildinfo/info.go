// Package buildinfo carries version metadata injected at link time, e.g.
//
//	go build -ldflags "-X github.com/cleared-dev/ledgersync/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "fmt"

var (
	// Version will be set via ldflags during build.
	Version = "dev"
	// Commit will be set via ldflags during build.
	Commit = "none"
	// Date will be set via ldflags during build.
	Date = "unknown"
)

// String formats the build metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}

// UserAgent identifies ledgersync in outgoing HTTP requests.
func UserAgent() string {
	return "ledgersync/" + Version
}
