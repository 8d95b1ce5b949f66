/*
Package version holds the build identity of profile-qa.

Values are set via ldflags during build:

	go build -ldflags "-X github.com/khanglvm/profile-qa/internal/version.Version=v0.3.0 \
	  -X github.com/khanglvm/profile-qa/internal/version.Commit=$(git rev-parse --short HEAD) \
	  -X github.com/khanglvm/profile-qa/internal/version.Date=$(date -u +%Y-%m-%d)"

Without ldflags the binary reports a "dev" build.
*/
package version

// Build information, overridden via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the build identity as a display string.
func String() string {
	return Format(Version, Commit, Date)
}

// Format renders version components; dev builds omit commit and date.
func Format(version, commit, date string) string {
	if version == "dev" {
		return version + " (development build)"
	}
	return version + " (commit: " + commit + ", built: " + date + ")"
}

// Components returns the individual build components.
func Components() (version, commit, date string) {
	return Version, Commit, Date
}
