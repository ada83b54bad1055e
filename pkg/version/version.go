// Package version carries build metadata for fleetd and fleetctl, injected
// at build time via -ldflags:
//
//	-X github.com/telekom/fleet-coordinator/pkg/version.Version=v1.2.0
//	-X github.com/telekom/fleet-coordinator/pkg/version.GitCommit=$(git rev-parse --short HEAD)
//	-X github.com/telekom/fleet-coordinator/pkg/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
package version

import (
	"runtime"
	"time"
)

var (
	// Version is the semantic version of the fleet binaries.
	Version = "dev"
	// GitCommit is the git commit hash of the build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// BuildInfo is reported by GET /status and the version commands.
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"gitCommit"`
	BuildDate string    `json:"buildDate"`
	GoVersion string    `json:"goVersion"`
	Platform  string    `json:"platform"`
	BuildTime time.Time `json:"buildTime,omitempty"`
}

func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, BuildDate); err == nil {
		info.BuildTime = t
	}
	return info
}

// UserAgent identifies a fleet binary to peers and the resolver,
// e.g. "fleetd/v1.2.0".
func UserAgent(binary string) string {
	return binary + "/" + Version
}
