// ABOUTME: mDNS publisher built on hashicorp/mdns responders
// ABOUTME: Runs one responder per announcement and sends goodbyes on withdraw
package multicast

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
	"github.com/hashicorp/mdns"
	"github.com/horockey/go-toolbox/options"
	"github.com/miekg/dns"
)

var mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353} //nolint: mnd

type responder interface {
	Shutdown() error
}

// Publisher answers multicast queries for announcements of this host
type Publisher struct {
	bind   transport.Binding
	params Params
	stdlog *log.Logger

	// replaced in tests
	newResponder func(cfg *mdns.Config) (responder, error)
	localIPs     func() ([]net.IP, error)
	send         func(msg *dns.Msg) error

	mu     sync.Mutex
	pubs   map[*publication]struct{}
	closed bool
}

type publication struct {
	pub         *Publisher
	ann         transport.Announcement
	zone        mdns.Zone
	serviceAddr string
	server      responder

	once sync.Once
	err  error
}

var _ transport.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher attached to bind
func NewPublisher(bind transport.Binding, opts ...options.Option[Params]) (*Publisher, error) {
	p := defaultParams("mdns_publisher")
	if err := options.ApplyOptions(&p, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	pub := &Publisher{
		bind:   bind,
		params: p,
		stdlog: log.New(p.logger, "", 0),
		newResponder: func(cfg *mdns.Config) (responder, error) {
			srv, err := mdns.NewServer(cfg)
			if err != nil {
				return nil, err
			}
			return srv, nil
		},
		localIPs: transport.LocalIPv4,
		pubs:     map[*publication]struct{}{},
	}
	pub.send = pub.multicast

	return pub, nil
}

// Publish starts answering queries for a
func (p *Publisher) Publish(a transport.Announcement) (transport.Publication, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, transport.ErrClosed
	}

	ips := a.IPs
	if len(ips) == 0 {
		if !p.bind.Any() {
			ips = []net.IP{p.bind.IP}
		} else {
			local, err := p.localIPs()
			if err != nil {
				return nil, fmt.Errorf("listing local addresses: %w", err)
			}
			ips = local
		}
	}
	if len(ips) == 0 {
		return nil, transport.ErrNoInterface
	}

	host := a.Host
	if host == "" {
		host = p.params.hostname
	}
	if host == "" {
		osHost, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("getting hostname: %w", err)
		}
		host = osHost
	}

	service, domain := transport.SplitType(a.Type)
	svc, err := mdns.NewMDNSService(a.Instance, service, trimDot(domain)+".", hostFqdn(host, domain), a.Port, ips, a.Text)
	if err != nil {
		return nil, fmt.Errorf("creating service: %w", err)
	}

	zone := &srvZone{zone: svc, priority: a.Priority, weight: a.Weight}
	server, err := p.newResponder(&mdns.Config{
		Zone:   zone,
		Iface:  p.bind.Iface,
		Logger: p.stdlog,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mdns server: %w", err)
	}

	a.IPs = ips
	pub := &publication{
		pub:         p,
		ann:         a,
		zone:        zone,
		serviceAddr: fmt.Sprintf("%s.%s.", trimDot(service), trimDot(domain)),
		server:      server,
	}
	p.pubs[pub] = struct{}{}

	p.params.logger.Info().
		Str("name", a.Instance).
		Str("type", a.Type).
		Int("port", a.Port).
		Str("bind", p.bind.String()).
		Msg("advertising service")

	return pub, nil
}

// Close withdraws every live publication
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubs := make([]*publication, 0, len(p.pubs))
	for pub := range p.pubs {
		pubs = append(pubs, pub)
	}
	p.mu.Unlock()

	var resErr error
	for _, pub := range pubs {
		if err := pub.Withdraw(); err != nil {
			resErr = errors.Join(resErr, err)
		}
	}
	return resErr
}

func (p *Publisher) forget(pub *publication) {
	p.mu.Lock()
	delete(p.pubs, pub)
	p.mu.Unlock()
}

func (p *Publisher) multicast(msg *dns.Msg) error {
	buf, err := msg.Pack()
	if err != nil {
		return fmt.Errorf("packing goodbye: %w", err)
	}

	var laddr *net.UDPAddr
	if !p.bind.Any() && p.bind.IP.To4() != nil {
		laddr = &net.UDPAddr{IP: p.bind.IP}
	}

	conn, err := net.DialUDP("udp4", laddr, mdnsGroup)
	if err != nil {
		return fmt.Errorf("dialing mdns group: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("sending goodbye: %w", err)
	}
	return nil
}

func (pub *publication) Announcement() transport.Announcement {
	return pub.ann
}

// Withdraw stops the responder and multicasts a goodbye. Later calls return
// the result of the first.
func (pub *publication) Withdraw() error {
	pub.once.Do(func() {
		defer pub.pub.forget(pub)

		if err := pub.server.Shutdown(); err != nil {
			pub.err = fmt.Errorf("shutting down responder for %s: %w", pub.ann.Instance, err)
		}

		if msg := goodbye(pub.zone, pub.serviceAddr); msg != nil {
			if err := pub.pub.send(msg); err != nil {
				pub.pub.params.logger.Warn().
					Err(err).
					Str("name", pub.ann.Instance).
					Msg("goodbye not sent")
			}
		}

		pub.pub.params.logger.Info().
			Str("name", pub.ann.Instance).
			Str("type", pub.ann.Type).
			Msg("service withdrawn")
	})
	return pub.err
}

func hostFqdn(host, domain string) string {
	host = trimDot(host)
	domain = trimDot(domain)
	if host == domain || len(host) > len(domain) && host[len(host)-len(domain)-1:] == "."+domain {
		return host + "."
	}
	return host + "." + domain + "."
}
