package config

import "fmt"

// Linker-injected build metadata variables. These are set at compile time via
// -ldflags, for example:
//
//	go build -ldflags "-X autoshutdown/internal/config.version=1.2.3 \
//	    -X autoshutdown/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X autoshutdown/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/autoshutdown
//
// Default values are used during local development when ldflags are not set.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected global variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// String renders the build as printed by the -version flag.
func (b BuildInfo) String() string {
	return fmt.Sprintf("autoshutdown %s (commit %s, built %s)", b.Version, b.Commit, b.BuildTime)
}
