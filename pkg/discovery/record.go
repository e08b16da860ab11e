// ABOUTME: ServerRecord snapshot of one discovered or published service instance
// ABOUTME: Identity, ordering and hashing are defined by the service name only
package discovery

import (
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
	"github.com/samber/lo"
)

// DefaultServiceName is the instance name published by Subversion Edge servers.
// When several servers share a host the transport may rename later ones, e.g.
// "collabnetsvn (2)".
const DefaultServiceName = "collabnetsvn"

const pathProperty = "path"

// Event tags the transition that produced a ServerRecord
type Event int

const (
	// EventRunning is produced when a server is resolved
	EventRunning Event = iota + 1
	// EventShutdown is produced when a server stops answering
	EventShutdown
)

func (e Event) String() string {
	switch e {
	case EventRunning:
		return "RUNNING"
	case EventShutdown:
		return "SHUTDOWN"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// ServerRecord is an immutable snapshot of one service instance
type ServerRecord struct {
	serviceName string
	serviceType ServiceType
	address     net.IP
	hostname    string
	port        int
	url         string
	properties  map[ServiceKey]string
	event       Event
}

// RecordParams holds the inputs of NewServerRecord
type RecordParams struct {
	ServiceName string
	ServiceType ServiceType
	Address     net.IP
	// Hostname is the canonical host name, without trailing dot
	Hostname   string
	Port       int
	Properties map[ServiceKey]string
	Event      Event
}

// NewServerRecord validates p and builds a record. Running records must carry
// a port and every key required by the type. Shutdown records only need a name.
func NewServerRecord(p RecordParams) (ServerRecord, error) {
	if p.ServiceName == "" {
		return ServerRecord{}, &ValidationError{ServiceType: p.ServiceType, Field: "serviceName", Reason: "must not be empty"}
	}
	if !p.ServiceType.Valid() {
		return ServerRecord{}, &ValidationError{ServiceType: p.ServiceType, Field: "serviceType", Reason: "unknown service type"}
	}
	if p.Event != EventRunning && p.Event != EventShutdown {
		return ServerRecord{}, &ValidationError{ServiceType: p.ServiceType, Field: "event", Reason: "unknown event"}
	}

	props := make(map[ServiceKey]string, len(p.ServiceType.RequiredKeys()))
	for _, key := range p.ServiceType.RequiredKeys() {
		v, found := p.Properties[key]
		if !found {
			if p.Event == EventShutdown {
				continue
			}
			return ServerRecord{}, &ValidationError{ServiceType: p.ServiceType, Field: key.String(), Reason: "missing required property"}
		}
		props[key] = v
	}

	if p.Event == EventRunning {
		if err := validatePort(p.ServiceType, p.Port); err != nil {
			return ServerRecord{}, err
		}
	}

	rec := ServerRecord{
		serviceName: p.ServiceName,
		serviceType: p.ServiceType,
		address:     slices.Clone(p.Address),
		hostname:    strings.TrimSuffix(p.Hostname, "."),
		port:        p.Port,
		properties:  props,
		event:       p.Event,
	}
	rec.url = rec.deriveURL()

	return rec, nil
}

// recordFromEntry builds a running record from a resolved transport entry.
// Keys the announcement lacks are kept with an empty value, so servers with
// a partial TXT record are still reported.
func recordFromEntry(st ServiceType, e transport.Entry) (ServerRecord, error) {
	props := map[ServiceKey]string{}
	for _, key := range st.RequiredKeys() {
		v, _ := e.Property(key.String())
		props[key] = v
	}

	return NewServerRecord(RecordParams{
		ServiceName: e.Instance,
		ServiceType: st,
		Address:     e.Addr(),
		Hostname:    e.Host,
		Port:        e.Port,
		Properties:  props,
		Event:       EventRunning,
	})
}

// shutdownRecord builds a shutdown record from whatever is known about the
// instance. last is the indexed record, if any.
func shutdownRecord(st ServiceType, e transport.Entry, last *ServerRecord) (ServerRecord, error) {
	p := RecordParams{
		ServiceName: e.Instance,
		ServiceType: st,
		Address:     e.Addr(),
		Hostname:    e.Host,
		Port:        e.Port,
		Properties:  map[ServiceKey]string{},
		Event:       EventShutdown,
	}
	for _, key := range st.RequiredKeys() {
		if v, found := e.Property(key.String()); found {
			p.Properties[key] = v
		}
	}

	if last != nil {
		if p.Address == nil {
			p.Address = last.address
		}
		if p.Hostname == "" {
			p.Hostname = last.hostname
		}
		if p.Port == 0 {
			p.Port = last.port
		}
		for k, v := range last.properties {
			if _, found := p.Properties[k]; !found {
				p.Properties[k] = v
			}
		}
	}

	return NewServerRecord(p)
}

// deriveURL prefers the host name over the address. A "path" property is
// appended, or used as is when it already is an absolute URL.
func (r ServerRecord) deriveURL() string {
	host := r.hostname
	if host == "" && r.address != nil {
		host = r.address.String()
	}
	if host == "" {
		return ""
	}

	pathKey, hasPath := lo.FindKeyBy(r.properties, func(k ServiceKey, _ string) bool {
		return k.String() == pathProperty
	})
	pathValue := r.properties[pathKey]
	if hasPath && strings.Contains(pathValue, "://") {
		if u, err := url.Parse(pathValue); err == nil {
			return u.String()
		}
	}

	u := url.URL{Scheme: "http", Host: host}
	if r.port > 0 {
		u.Host = net.JoinHostPort(host, strconv.Itoa(r.port))
	}
	if hasPath && pathValue != "" {
		if !strings.HasPrefix(pathValue, "/") {
			pathValue = "/" + pathValue
		}
		u.Path = pathValue
	}
	return u.String()
}

// ServiceName returns the identity of the record
func (r ServerRecord) ServiceName() string {
	return r.serviceName
}

// ServiceType returns the type the record was resolved for
func (r ServerRecord) ServiceType() ServiceType {
	return r.serviceType
}

// Address returns the resolved address, nil when unknown
func (r ServerRecord) Address() net.IP {
	return slices.Clone(r.address)
}

// HostAddress returns the textual address, empty when unknown
func (r ServerRecord) HostAddress() string {
	if r.address == nil {
		return ""
	}
	return r.address.String()
}

// Hostname returns the canonical host name, or the address when none resolved
func (r ServerRecord) Hostname() string {
	if r.hostname != "" {
		return r.hostname
	}
	return r.HostAddress()
}

// Port returns the service port, 0 when unknown
func (r ServerRecord) Port() int {
	return r.port
}

// URL returns the display URL, empty when neither host nor address is known
func (r ServerRecord) URL() string {
	return r.url
}

// Property returns the value of key
func (r ServerRecord) Property(key ServiceKey) (string, bool) {
	v, found := r.properties[key]
	return v, found
}

// Properties returns a copy of the record properties
func (r ServerRecord) Properties() map[ServiceKey]string {
	return maps.Clone(r.properties)
}

// Event returns the transition that produced the record
func (r ServerRecord) Event() Event {
	return r.event
}

// Key is the de-duplication key of the record
func (r ServerRecord) Key() string {
	return r.serviceName
}

// Equal reports whether both records name the same service
func (r ServerRecord) Equal(o ServerRecord) bool {
	return r.serviceName == o.serviceName
}

// Compare orders records by service name
func (r ServerRecord) Compare(o ServerRecord) int {
	return strings.Compare(r.serviceName, o.serviceName)
}

func (r ServerRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ServerRecord: name=%s, url=%s, event=%s Keys:", r.serviceName, r.url, r.event)
	for _, key := range r.serviceType.RequiredKeys() {
		if v, found := r.properties[key]; found {
			fmt.Fprintf(&b, " [%s]=%s", key, v)
		}
	}
	return b.String()
}

type recordJSON struct {
	ServiceName string            `json:"serviceName"`
	ServiceType string            `json:"serviceType"`
	Address     string            `json:"address,omitempty"`
	Hostname    string            `json:"hostname,omitempty"`
	Port        int               `json:"port,omitempty"`
	URL         string            `json:"url,omitempty"`
	Properties  map[string]string `json:"properties"`
	Event       string            `json:"event"`
}

// MarshalJSON encodes the record with properties keyed by wire name
func (r ServerRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ServiceName: r.serviceName,
		ServiceType: r.serviceType.Wire(),
		Address:     r.HostAddress(),
		Hostname:    r.hostname,
		Port:        r.port,
		URL:         r.url,
		Properties: lo.MapKeys(r.properties, func(_ string, k ServiceKey) string {
			return k.String()
		}),
		Event: r.event.String(),
	})
}

// absentKeys lists the keys of st that e does not announce
func absentKeys(st ServiceType, e transport.Entry) []string {
	var absent []string
	for _, key := range st.RequiredKeys() {
		if _, found := e.Property(key.String()); !found {
			absent = append(absent, key.String())
		}
	}
	return absent
}
