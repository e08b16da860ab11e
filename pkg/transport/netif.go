// ABOUTME: Local network interface enumeration and bind address resolution
// ABOUTME: Decides whether an address can carry multicast DNS traffic for this host
package transport

import (
	"fmt"
	"net"
)

// Interface is a local network interface with its assigned addresses
type Interface struct {
	net.Interface
	Addrs []net.IP
}

// Up reports whether the interface is administratively up
func (i Interface) Up() bool {
	return i.Flags&net.FlagUp != 0
}

// Loopback reports whether the interface is a loopback device
func (i Interface) Loopback() bool {
	return i.Flags&net.FlagLoopback != 0
}

// Multicast reports whether the interface supports multicast
func (i Interface) Multicast() bool {
	return i.Flags&net.FlagMulticast != 0
}

// interfaces is replaced in tests
var interfaces = systemInterfaces

func systemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	res := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		entry := Interface{Interface: iface}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				entry.Addrs = append(entry.Addrs, ipnet.IP)
			}
		}
		res = append(res, entry)
	}

	return res, nil
}

// LocalIPv4 returns the IPv4 addresses of interfaces that are up and carry no
// loopback address, in interface order
func LocalIPv4() ([]net.IP, error) {
	ifaces, err := interfaces()
	if err != nil {
		return nil, err
	}

	ips := []net.IP{}
	for _, iface := range ifaces {
		if !iface.Up() || iface.Loopback() {
			continue
		}

		loopback := false
		var valid []net.IP
		for _, ip := range iface.Addrs {
			loopback = loopback || ip.IsLoopback()
			if ip4 := ip.To4(); ip4 != nil {
				valid = append(valid, ip4)
			}
		}
		if !loopback {
			ips = append(ips, valid...)
		}
	}

	return ips, nil
}

// Binding is the local endpoint a browser or publisher is attached to.
// A zero Binding means all interfaces.
type Binding struct {
	IP    net.IP
	Iface *net.Interface
}

// Any reports whether the binding covers all interfaces
func (b Binding) Any() bool {
	return b.IP == nil
}

func (b Binding) String() string {
	if b.Any() {
		return "all interfaces"
	}
	if b.Iface == nil {
		return b.IP.String()
	}
	return fmt.Sprintf("%s (%s)", b.IP, b.Iface.Name)
}

// ResolveBinding validates ip against the interfaces of this host. A nil or
// unspecified ip binds to all interfaces, which still requires at least one
// multicast capable interface to be up.
func ResolveBinding(ip net.IP) (Binding, error) {
	ifaces, err := interfaces()
	if err != nil {
		return Binding{}, err
	}

	if ip == nil || ip.IsUnspecified() {
		for _, iface := range ifaces {
			if iface.Up() && iface.Multicast() && !iface.Loopback() && len(iface.Addrs) > 0 {
				return Binding{}, nil
			}
		}
		return Binding{}, ErrNoInterface
	}

	if ip.IsMulticast() || ip.IsLinkLocalUnicast() {
		return Binding{}, fmt.Errorf("%s: %w", ip, ErrAddressUnusable)
	}

	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if !addr.Equal(ip) {
				continue
			}
			if !iface.Up() || !iface.Multicast() {
				return Binding{}, fmt.Errorf("%s on %s: %w", ip, iface.Name, ErrAddressUnusable)
			}
			netIface := iface.Interface
			return Binding{IP: ip, Iface: &netIface}, nil
		}
	}

	return Binding{}, fmt.Errorf("%s: %w", ip, ErrAddressNotLocal)
}
