// ABOUTME: Version information for the discovery tools
// ABOUTME: Version is overridden at build time with -ldflags
package version

// Version is the release of the tools
var Version = "dev"

const (
	// Product names the tool suite
	Product = "Subversion Edge Discovery"
	// Manufacturer is reported in the user agent and the TUI header
	Manufacturer = "CollabNet"
)

// UserAgent identifies the tools in HTTP responses
func UserAgent() string {
	return "svnedge-discovery/" + Version
}
