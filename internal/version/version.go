// Package version provides build-time version information
package version

var (
	// Version is the semantic version (set via ldflags)
	Version = "0.1.0"

	// GitCommit is the git commit hash (set via ldflags)
	GitCommit = "unknown"
)

// Info returns a formatted version string
func Info() string {
	if GitCommit == "unknown" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
