// Package version provides build and version information for protoscope.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/Aman-CERP/protoscope/internal/protocol"
)

// Version is the current version of protoscope.
// Set via ldflags: -X github.com/Aman-CERP/protoscope/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary (set at runtime).
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	PluginAPI string `json:"plugin_api"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("protoscope %s (commit: %s, built: %s, go: %s, plugin api: %s)",
		Short(), Commit, Date, GoVersion, protocol.APIVersion)
}

// Short returns just the version string. Development builds installed with
// `go install` report their module version instead of "dev".
func Short() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Short(),
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		PluginAPI: protocol.APIVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
