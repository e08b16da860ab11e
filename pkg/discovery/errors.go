// ABOUTME: Error kinds of the discovery core
// ABOUTME: TransportError for network setup and teardown, ValidationError for caller input
package discovery

import (
	"fmt"
	"net"
)

// TransportError reports that the multicast transport could not be created,
// bound or closed
type TransportError struct {
	Op   string
	Addr net.IP
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == nil {
		return fmt.Sprintf("discovery transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("discovery transport %s on %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError reports caller input that was rejected before any network I/O
type ValidationError struct {
	ServiceType ServiceType
	Field       string
	Reason      string
}

func (e *ValidationError) Error() string {
	if e.ServiceType.Valid() {
		return fmt.Sprintf("%s %q for service type %s", e.Reason, e.Field, e.ServiceType)
	}
	return fmt.Sprintf("%s %q", e.Reason, e.Field)
}

func validatePort(st ServiceType, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{ServiceType: st, Field: "port", Reason: fmt.Sprintf("out of range (%d)", port)}
	}
	return nil
}
