// Package version carries build metadata injected with -ldflags.
package version

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the git revision the binary was built from.
	Commit = ""
	// BuildDate is an RFC3339 timestamp.
	BuildDate = ""
)
