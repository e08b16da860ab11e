// ABOUTME: Local address enumeration for presenting bind choices to a user
// ABOUTME: Thin wrapper over the transport interface table
package discovery

import (
	"net"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
)

// LocalIPv4 returns the non-loopback IPv4 addresses of interfaces that are up
func LocalIPv4() ([]net.IP, error) {
	return transport.LocalIPv4()
}
