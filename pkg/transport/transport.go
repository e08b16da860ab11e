// ABOUTME: Contract between the discovery core and a multicast DNS implementation
// ABOUTME: Defines browse listeners, service entries, announcements and publications
package transport

import (
	"errors"
	"net"
	"slices"
	"strings"
)

var (
	// ErrNoInterface is returned when no multicast capable interface is up
	ErrNoInterface = errors.New("no usable multicast interface")
	// ErrAddressNotLocal is returned when an address is not assigned to this host
	ErrAddressNotLocal = errors.New("address is not assigned to a local interface")
	// ErrAddressUnusable is returned for addresses that cannot carry multicast traffic
	ErrAddressUnusable = errors.New("address cannot be used for multicast")
	// ErrClosed is returned by operations on a closed browser or publisher
	ErrClosed = errors.New("transport closed")
)

// Entry is the transport view of one service instance
type Entry struct {
	// Instance is the unescaped instance label, e.g. "collabnetsvn (2)"
	Instance string
	// Type is the wire type, e.g. "_csvn._tcp.local."
	Type   string
	Host   string
	AddrV4 net.IP
	AddrV6 net.IP
	Port   int
	Text   []string
}

// Addr returns the preferred address of the entry, IPv4 first
func (e Entry) Addr() net.IP {
	if e.AddrV4 != nil {
		return e.AddrV4
	}
	return e.AddrV6
}

// Property looks a key up in the TXT strings. A bare key yields an empty value.
func (e Entry) Property(key string) (string, bool) {
	for _, txt := range e.Text {
		k, v, found := strings.Cut(txt, "=")
		if !strings.EqualFold(k, key) {
			continue
		}
		if !found {
			return "", true
		}
		return v, true
	}
	return "", false
}

// Equal reports whether two entries carry the same resolved details
func (e Entry) Equal(o Entry) bool {
	return e.Instance == o.Instance &&
		e.Type == o.Type &&
		e.Host == o.Host &&
		e.AddrV4.Equal(o.AddrV4) &&
		e.AddrV6.Equal(o.AddrV6) &&
		e.Port == o.Port &&
		slices.Equal(e.Text, o.Text)
}

// Event is delivered to listeners for every transition the transport observes
type Event struct {
	Type  string
	Name  string
	Entry Entry
}

// Listener receives browse events. Calls may arrive from any goroutine.
type Listener interface {
	ServiceAdded(ev Event)
	ServiceResolved(ev Event)
	ServiceRemoved(ev Event)
}

// Browser watches the multicast domain for service types
type Browser interface {
	AddListener(serviceType string, l Listener) error
	// RemoveListener detaches l. It never waits for in-flight callbacks.
	RemoveListener(serviceType string, l Listener)
	// RequestDetails asks for a one-shot resolution of a named instance
	RequestDetails(serviceType, name string)
	// Cancel stops browsing without waiting for in-flight callbacks. It is
	// the variant to use from inside a listener.
	Cancel()
	// Close stops browsing and waits for in-flight callbacks to return. It
	// must not be called from a listener.
	Close() error
}

// Announcement describes a record published by this host
type Announcement struct {
	Instance string
	Type     string
	Host     string
	Port     int
	Priority uint16
	Weight   uint16
	Text     []string
	IPs      []net.IP
}

// Publication is a live announcement
type Publication interface {
	Announcement() Announcement
	Withdraw() error
}

// Publisher answers queries for announcements of this host
type Publisher interface {
	Publish(a Announcement) (Publication, error)
	Close() error
}

// SplitType splits a wire type such as "_csvn._tcp.local." into the service
// part "_csvn._tcp" and the domain "local"
func SplitType(wire string) (service, domain string) {
	wire = strings.TrimSuffix(wire, ".")
	labels := strings.Split(wire, ".")
	if len(labels) <= 2 {
		return wire, "local"
	}
	return strings.Join(labels[:2], "."), strings.Join(labels[2:], ".")
}
