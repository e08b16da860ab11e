// ABOUTME: Tests for interface enumeration and bind address resolution
// ABOUTME: Uses a fake interface table so results do not depend on the host
package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withInterfaces(t *testing.T, ifaces ...Interface) {
	t.Helper()
	orig := interfaces
	interfaces = func() ([]Interface, error) { return ifaces, nil }
	t.Cleanup(func() { interfaces = orig })
}

func fakeIface(name string, flags net.Flags, addrs ...string) Interface {
	iface := Interface{Interface: net.Interface{Name: name, Index: len(name), Flags: flags}}
	for _, a := range addrs {
		iface.Addrs = append(iface.Addrs, net.ParseIP(a))
	}
	return iface
}

var (
	lo   = fakeIface("lo", net.FlagUp|net.FlagLoopback, "127.0.0.1", "::1")
	eth0 = fakeIface("eth0", net.FlagUp|net.FlagMulticast|net.FlagBroadcast, "192.168.1.10", "fe80::10")
	eth1 = fakeIface("eth1", net.FlagMulticast, "10.1.0.5")
	tun0 = fakeIface("tun0", net.FlagUp|net.FlagPointToPoint, "10.8.0.1")
)

func TestLocalIPv4(t *testing.T) {
	withInterfaces(t, lo, eth0, eth1, tun0)

	ips, err := LocalIPv4()
	require.NoError(t, err)

	got := make([]string, 0, len(ips))
	for _, ip := range ips {
		got = append(got, ip.String())
	}
	assert.Equal(t, []string{"192.168.1.10", "10.8.0.1"}, got)
}

func TestLocalIPv4NoInterfaces(t *testing.T) {
	withInterfaces(t)

	ips, err := LocalIPv4()
	require.NoError(t, err)
	assert.NotNil(t, ips)
	assert.Empty(t, ips)
}

func TestResolveBindingAny(t *testing.T) {
	withInterfaces(t, lo, eth0)

	b, err := ResolveBinding(nil)
	require.NoError(t, err)
	assert.True(t, b.Any())
	assert.Equal(t, "all interfaces", b.String())

	b, err = ResolveBinding(net.IPv4zero)
	require.NoError(t, err)
	assert.True(t, b.Any())
}

func TestResolveBindingAnyWithoutMulticast(t *testing.T) {
	withInterfaces(t, lo, eth1, tun0)

	_, err := ResolveBinding(nil)
	assert.ErrorIs(t, err, ErrNoInterface)
}

func TestResolveBindingAddress(t *testing.T) {
	withInterfaces(t, lo, eth0, eth1)

	b, err := ResolveBinding(net.ParseIP("192.168.1.10"))
	require.NoError(t, err)
	assert.False(t, b.Any())
	require.NotNil(t, b.Iface)
	assert.Equal(t, "eth0", b.Iface.Name)
	assert.Equal(t, "192.168.1.10 (eth0)", b.String())
}

func TestResolveBindingErrors(t *testing.T) {
	withInterfaces(t, lo, eth0, eth1)

	tests := []struct {
		name string
		ip   string
		want error
	}{
		{"not local", "192.168.1.99", ErrAddressNotLocal},
		{"link local", "169.254.3.4", ErrAddressUnusable},
		{"link local v6", "fe80::10", ErrAddressUnusable},
		{"multicast", "224.0.0.251", ErrAddressUnusable},
		{"interface down", "10.1.0.5", ErrAddressUnusable},
		{"loopback without multicast", "127.0.0.1", ErrAddressUnusable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveBinding(net.ParseIP(tt.ip))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
