package app

// Build information populated via -ldflags at build time. It is recorded in
// the run manifest and printed by -version.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString formats the build information on one line.
func VersionString() string {
	return "robextract " + BuildVersion + " (" + BuildCommit + ", " + BuildDate + ")"
}
