// Package version is the single source of build version information.
package version

// Overridable at build time:
// go build -ldflags "-X ckc/internal/version.Version=1.2.0 -X ckc/internal/version.Commit=abc123"
var (
	// Version is the semantic version of CKC
	Version = "1.0.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a short version string.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information.
func Full() string {
	return "CKC version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
