package version

// Version is the current version of intrascan.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/quantframe-labs/intrascan/internal/version.Version=1.2.3"
// The default value indicates a development build.
var Version = "main"

// GetVersion returns the current version of the module.
func GetVersion() string {
	return Version
}
