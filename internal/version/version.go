/*
Package version holds build information for skill-advisor.

Values are set via ldflags during build, for example:

	go build -ldflags "-X .../internal/version.Version=v0.3.0 -X .../internal/version.Commit=$(git rev-parse --short HEAD)"

Without ldflags the binary reports a "dev" build.
*/
package version

// Version information (set via ldflags during build)
var (
	// Version is the release tag, e.g. v0.3.0
	Version = "dev"
	// Commit is the short git commit hash
	Commit = "none"
	// Date is the build date in UTC (YYYY-MM-DD)
	Date = "unknown"
)

// String formats the build information for --version output.
func String() string {
	return Format(Version, Commit, Date)
}

// Format formats version components into a display string.
func Format(version, commit, date string) string {
	if version == "dev" {
		return version + " (development build)"
	}
	return version + " (commit: " + commit + ", built: " + date + ")"
}

// GetVersionComponents returns individual version components
func GetVersionComponents() (version, commit, date string) {
	return Version, Commit, Date
}
