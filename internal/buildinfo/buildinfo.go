// Package buildinfo holds version metadata stamped in at build time via
// -ldflags "-X .../buildinfo.Version=...".
package buildinfo

// Version is the released version string (e.g. "v1.4.0"), or "dev" for
// unstamped local builds.
var Version = "dev"

// Commit is the git commit hash the binary was built from.
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
var BuildDate = ""
