// Package version holds build metadata injected at link time.
package version

// Set via -ldflags "-X github.com/yugabyte/build-gcc/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
