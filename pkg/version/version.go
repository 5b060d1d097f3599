// Package version reports how the claimsync binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set with -ldflags "-X github.com/Aman-CERP/claimsync/pkg/version.Version=v1.2.3".
var Version = "dev"

// Build information set via ldflags.
var (
	// Commit is the short git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line description of the build.
func String() string {
	info := GetInfo()
	return fmt.Sprintf("claimsync %s (commit: %s, built: %s, go: %s)",
		info.Version, info.Commit, info.Date, info.GoVersion)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// Name identifies this process to servers, e.g. "claimsync/v1.2.3".
func Name() string {
	return "claimsync/" + Version
}

// GetInfo returns structured version information. Without ldflags the
// commit falls back to the VCS stamp the Go toolchain embeds.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if info.Commit == "unknown" {
		if rev, ok := vcsRevision(); ok {
			info.Commit = rev
		}
	}
	return info
}

func vcsRevision() (string, bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value[:min(len(s.Value), 12)], true
		}
	}
	return "", false
}
