package version

// Build metadata injected via -ldflags. Helpers fall back to development
// defaults when unset.

var (
	// Version is a SemVer tag like v1.2.3 for releases. Empty for dev builds.
	Version = ""
	// Commit is the short git SHA for the build.
	Commit = ""
)

// String returns a compact human-readable version: the release tag, or
// "dev-<sha>" for dev builds, or "dev" when no metadata is available.
func String() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		return "dev-" + Commit
	}
	return "dev"
}
