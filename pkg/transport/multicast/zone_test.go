// ABOUTME: Tests for the SRV overriding zone and goodbye packets
// ABOUTME: Builds real hashicorp/mdns services without touching the network
package multicast

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *mdns.MDNSService {
	t.Helper()
	svc, err := mdns.NewMDNSService(
		"collabnetsvn",
		"_csvn._tcp",
		"local.",
		"svnhost.local.",
		8080,
		[]net.IP{net.ParseIP("192.168.1.10")},
		[]string{"path=/csvn", "tfpath=/integration"},
	)
	require.NoError(t, err)
	return svc
}

func TestSrvZoneOverridesPriorityAndWeight(t *testing.T) {
	zone := &srvZone{zone: newTestService(t), priority: 0, weight: 0}

	rrs := zone.Records(dns.Question{
		Name:   "collabnetsvn._csvn._tcp.local.",
		Qtype:  dns.TypeSRV,
		Qclass: dns.ClassINET,
	})
	require.NotEmpty(t, rrs)

	found := false
	for _, rr := range rrs {
		if srv, ok := rr.(*dns.SRV); ok {
			found = true
			assert.Equal(t, uint16(0), srv.Priority)
			assert.Equal(t, uint16(0), srv.Weight)
			assert.Equal(t, uint16(8080), srv.Port)
		}
	}
	assert.True(t, found, "expected an SRV answer")
}

func TestSrvZoneKeepsUnderlyingRecords(t *testing.T) {
	svc := newTestService(t)
	zone := &srvZone{zone: svc, priority: 7, weight: 3}
	q := dns.Question{Name: "collabnetsvn._csvn._tcp.local.", Qtype: dns.TypeSRV, Qclass: dns.ClassINET}

	_ = zone.Records(q)

	for _, rr := range svc.Records(q) {
		if srv, ok := rr.(*dns.SRV); ok {
			assert.NotEqual(t, uint16(7), srv.Priority, "underlying zone must not be mutated")
		}
	}
}

func TestGoodbyeHasZeroTTL(t *testing.T) {
	zone := &srvZone{zone: newTestService(t)}

	msg := goodbye(zone, "_csvn._tcp.local.")
	require.NotNil(t, msg)
	assert.True(t, msg.Response)
	require.NotEmpty(t, msg.Answer)

	ptr := false
	for _, rr := range msg.Answer {
		assert.Equal(t, uint32(0), rr.Header().Ttl)
		switch r := rr.(type) {
		case *dns.PTR:
			ptr = true
			assert.Equal(t, "collabnetsvn._csvn._tcp.local.", r.Ptr)
		case *dns.A, *dns.AAAA:
			t.Errorf("goodbye must not expire host addresses, got %s", rr.String())
		}
	}
	assert.True(t, ptr)

	_, err := msg.Pack()
	assert.NoError(t, err)
}

func TestGoodbyeUnknownService(t *testing.T) {
	zone := &srvZone{zone: newTestService(t)}
	assert.Nil(t, goodbye(zone, "_other._tcp.local."))
}
