package version

// Package metadata, overridden via ldflags during release builds.
var (
	Version   = "0.1.0"      // Version of the release pipeline tool itself
	Toolname  = "mc-release" // Name of the tool
	BuildDate = "unknown"    // Date when the tool was built
	CommitSHA = "unknown"    // Commit SHA of the tool
)
