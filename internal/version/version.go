package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// FormatVersion is the package layout version written into every compiled
// template. Bump it when the package layout changes incompatibly.
const FormatVersion = 2

// BuildInfo contains version and build information
type BuildInfo struct {
	Version       string `json:"version"`
	FormatVersion int    `json:"format_version"`
	GitCommit     string `json:"git_commit"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version of the compiler
	Version = "dev"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"
)

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:       GetVersion(),
		FormatVersion: FormatVersion,
		GitCommit:     GetGitCommit(),
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion returns the compiler version. Development builds report
// 0.0.0-dev so that the manifest always holds a semantic version.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return strings.TrimPrefix(Version, "v")
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return strings.TrimPrefix(info.Main.Version, "v")
		}
	}

	return "0.0.0-dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}

	return "unknown"
}

// GetDetailedVersion returns a multi-line description of the build.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	parts := []string{
		fmt.Sprintf("Version: %s", info.Version),
		fmt.Sprintf("Format: %d", info.FormatVersion),
	}
	if info.GitCommit != "unknown" {
		parts = append(parts, fmt.Sprintf("Commit: %s", info.GitCommit))
	}
	parts = append(parts,
		fmt.Sprintf("Go: %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
	)

	return strings.Join(parts, "\n")
}
