// ABOUTME: Discovery register publishing this host's service announcements
// ABOUTME: Validates required properties before building per-type payloads
package discovery

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
	"github.com/collabnet/svnedge-discovery/pkg/transport/multicast"
	"github.com/horockey/go-toolbox/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ErrBindAddressRequired is wrapped when NewRegister gets no address
var ErrBindAddressRequired = errors.New("bind address required")

// Register publishes announcements of this host
type Register struct {
	bindAddr    net.IP
	serviceName string
	hostname    string
	publisher   transport.Publisher
	logger      zerolog.Logger
	metrics     *registerMetrics

	mu     sync.Mutex
	pubs   []transport.Publication
	closed bool
}

// NewRegister binds a publisher to bindAddr. It fails with a *TransportError
// when the address does not belong to this host or cannot carry multicast.
func NewRegister(bindAddr net.IP, opts ...options.Option[registerParams]) (*Register, error) {
	params := defaultRegisterParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	publisher := params.publisher
	if publisher == nil {
		if bindAddr == nil {
			return nil, &TransportError{Op: "bind", Err: ErrBindAddressRequired}
		}

		bind, err := transport.ResolveBinding(bindAddr)
		if err != nil {
			return nil, &TransportError{Op: "bind", Addr: bindAddr, Err: err}
		}

		mopts := []options.Option[multicast.Params]{
			multicast.WithLogger(params.logger.With().Str("subscope", "mdns_publisher").Logger()),
		}
		if params.hostname != "" {
			mopts = append(mopts, multicast.WithHostname(params.hostname))
		}

		mp, err := multicast.NewPublisher(bind, mopts...)
		if err != nil {
			return nil, &TransportError{Op: "create", Addr: bindAddr, Err: err}
		}
		publisher = mp
	}

	params.logger.Debug().
		Str("addr", bindAddr.String()).
		Msg("registering the server")

	return &Register{
		bindAddr:    bindAddr,
		serviceName: params.serviceName,
		hostname:    params.hostname,
		publisher:   publisher,
		logger:      params.logger,
		metrics:     newRegisterMetrics(),
	}, nil
}

// RegisterService validates props against st and publishes the announcement.
// A *ValidationError naming the first missing key is returned before any
// network I/O. Registering a type twice without Close is not supported.
func (r *Register) RegisterService(port int, st ServiceType, props map[ServiceKey]string) error {
	ann, err := r.announcement(port, st, props)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &TransportError{Op: "publish", Addr: r.bindAddr, Err: transport.ErrClosed}
	}

	if lo.ContainsBy(r.pubs, func(p transport.Publication) bool { return p.Announcement().Type == ann.Type }) {
		r.logger.Warn().
			Str("type", ann.Type).
			Msg("service type registered twice")
	}

	pub, err := r.publisher.Publish(ann)
	if err != nil {
		return &TransportError{Op: "publish", Addr: r.bindAddr, Err: err}
	}
	r.pubs = append(r.pubs, pub)
	r.metrics.published.Inc()
	r.metrics.active.Set(float64(len(r.pubs)))

	r.logger.Info().
		Str("name", ann.Instance).
		Str("type", ann.Type).
		Int("port", ann.Port).
		Strs("text", ann.Text).
		Msg("registered the server")

	return nil
}

// Announcements returns what is currently published
func (r *Register) Announcements() []transport.Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.pubs, func(p transport.Publication, _ int) transport.Announcement {
		return p.Announcement()
	})
}

// UnregisterServices withdraws every announcement but keeps the transport
func (r *Register) UnregisterServices() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.withdrawAll(); err != nil {
		return &TransportError{Op: "unregister", Addr: r.bindAddr, Err: err}
	}
	return nil
}

// Close withdraws every announcement and releases the transport. Calling it
// again is a no-op.
func (r *Register) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.logger.Debug().Msg("unregistering this server")

	resErr := r.withdrawAll()
	if err := r.publisher.Close(); err != nil {
		resErr = errors.Join(resErr, err)
	}
	if resErr != nil {
		return &TransportError{Op: "close", Addr: r.bindAddr, Err: resErr}
	}
	return nil
}

// Metrics returns the collectors of the register
func (r *Register) Metrics() []prometheus.Collector {
	return r.metrics.list()
}

// withdrawAll must be called with mu held
func (r *Register) withdrawAll() error {
	var resErr error
	for _, pub := range r.pubs {
		if err := pub.Withdraw(); err != nil {
			resErr = errors.Join(resErr, err)
		}
		r.metrics.withdrawn.Inc()
	}
	r.pubs = nil
	r.metrics.active.Set(0)
	return resErr
}

// announcement validates the input and builds the wire payload of st
func (r *Register) announcement(port int, st ServiceType, props map[ServiceKey]string) (transport.Announcement, error) {
	if !st.Valid() {
		return transport.Announcement{}, &ValidationError{ServiceType: st, Field: "serviceType", Reason: "unknown service type"}
	}

	values := make(map[ServiceKey]string, len(props))
	for _, key := range st.RequiredKeys() {
		v, found := props[key]
		if !found {
			return transport.Announcement{}, &ValidationError{ServiceType: st, Field: key.String(), Reason: "missing required property"}
		}
		values[key] = v
	}

	if err := validatePort(st, port); err != nil {
		return transport.Announcement{}, err
	}

	ann := transport.Announcement{
		Instance: r.serviceName,
		Type:     st.Wire(),
		Host:     r.hostname,
		Port:     port,
	}

	switch st {
	case ServiceTypeCSVN:
		ann.Priority = 0
		ann.Weight = 0
		for _, key := range st.RequiredKeys() {
			ann.Text = append(ann.Text, key.String()+"="+values[key])
		}
	case ServiceTypeHTTP:
		ann.Text = []string{HTTPPath.String() + "=" + values[HTTPPath]}
	}

	return ann, nil
}
