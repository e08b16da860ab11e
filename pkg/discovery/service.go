// ABOUTME: Registry of discoverable service types and their property keys
// ABOUTME: Maps each type to its wire string and required TXT keys
package discovery

import (
	"fmt"
	"slices"
	"strings"
)

// ServiceType is a discoverable service type
type ServiceType int

const (
	// ServiceTypeCSVN is the Subversion Edge control service
	ServiceTypeCSVN ServiceType = iota + 1
	// ServiceTypeHTTP is the generic http advertisement
	ServiceTypeHTTP
)

// ServiceKey is a property key scoped to one service type
type ServiceKey struct {
	name string
	wire string
}

var (
	// CSVNContextPath is the context path of the web console
	CSVNContextPath = ServiceKey{name: "CONTEXT_PATH", wire: "path"}
	// CSVNTeamForgePath is the TeamForge registration path
	CSVNTeamForgePath = ServiceKey{name: "TEAMFORGE_PATH", wire: "tfpath"}
	// HTTPPath is the path of the advertised http service
	HTTPPath = ServiceKey{name: "PATH", wire: "path"}
)

// Name returns the symbolic name of the key
func (k ServiceKey) Name() string {
	return k.name
}

// String returns the property name used on the wire
func (k ServiceKey) String() string {
	return k.wire
}

type serviceDef struct {
	name string
	wire string
	keys []ServiceKey
}

var serviceDefs = map[ServiceType]serviceDef{
	ServiceTypeCSVN: {
		name: "csvn",
		wire: "_csvn._tcp.local.",
		keys: []ServiceKey{CSVNContextPath, CSVNTeamForgePath},
	},
	ServiceTypeHTTP: {
		name: "http",
		wire: "_http._tcp.local.",
		keys: []ServiceKey{HTTPPath},
	},
}

// ServiceTypes returns every known service type
func ServiceTypes() []ServiceType {
	return []ServiceType{ServiceTypeCSVN, ServiceTypeHTTP}
}

// ParseServiceType accepts a wire string ("_csvn._tcp.local.") or a short
// name ("csvn")
func ParseServiceType(s string) (ServiceType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, st := range ServiceTypes() {
		def := serviceDefs[st]
		if norm == def.name || norm == def.wire || norm+"." == def.wire {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown service type %q", s)
}

// Valid reports whether st is a registered type
func (st ServiceType) Valid() bool {
	_, found := serviceDefs[st]
	return found
}

// Wire returns the wire-level type string
func (st ServiceType) Wire() string {
	return serviceDefs[st].wire
}

// Name returns the short name of the type
func (st ServiceType) Name() string {
	return serviceDefs[st].name
}

// RequiredKeys returns the keys every record of the type carries, in order
func (st ServiceType) RequiredKeys() []ServiceKey {
	return slices.Clone(serviceDefs[st].keys)
}

// KeyByWire returns the key of the type with the given wire name
func (st ServiceType) KeyByWire(wire string) (ServiceKey, bool) {
	for _, k := range serviceDefs[st].keys {
		if strings.EqualFold(k.wire, wire) {
			return k, true
		}
	}
	return ServiceKey{}, false
}

func (st ServiceType) String() string {
	if !st.Valid() {
		return fmt.Sprintf("ServiceType(%d)", int(st))
	}
	return st.Wire()
}
