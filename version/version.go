package version

// Version is the Major.Minor.Patch tag from git, set at build time with
// -ldflags "-X github.com/jake-scott/control4-bridge/version.Version=..."
var Version string = "dev"

// Commit is the short git hash of the build, if known
var Commit string
