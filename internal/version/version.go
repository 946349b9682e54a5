// ABOUTME: Build and product identification for voicelink binaries
// ABOUTME: Reported in logs, the TUI header and the server's mDNS TXT records
package version

// Version is overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.3.0"

const (
	Product      = "voicelink"
	Manufacturer = "Linguflex"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
