// ABOUTME: Discovery client keeping a live view of one service type
// ABOUTME: De-duplicates resolved services by name and fans out up/down events
package discovery

import (
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
	"github.com/collabnet/svnedge-discovery/pkg/transport/multicast"
	"github.com/horockey/go-toolbox/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Client watches the local multicast domain for instances of one service type
type Client struct {
	serviceType   ServiceType
	bindAddr      net.IP
	hostname      string
	browser       transport.Browser
	listener      *clientListener
	detailLookups bool
	logger        zerolog.Logger
	metrics       *clientMetrics

	observers observerSet

	// mu serializes resolved/removed handling and observer delivery
	mu sync.Mutex
	// idxMu guards index for readers that must not wait on delivery
	idxMu sync.RWMutex
	index map[string]ServerRecord

	stopped atomic.Bool
}

// clientListener keeps the transport callbacks off the Client API
type clientListener struct {
	c *Client
}

// NewClient opens a browser for st and starts watching. It fails with a
// *TransportError when no usable interface is available.
func NewClient(st ServiceType, opts ...options.Option[clientParams]) (*Client, error) {
	if !st.Valid() {
		return nil, &ValidationError{ServiceType: st, Field: "serviceType", Reason: "unknown service type"}
	}

	params := defaultClientParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	logger := params.logger.With().Str("type", st.Wire()).Logger()
	if params.hostname != "" {
		logger = logger.With().Str("host", params.hostname).Logger()
	}

	browser := params.browser
	if browser == nil {
		bind, err := transport.ResolveBinding(params.bindAddr)
		if err != nil {
			return nil, &TransportError{Op: "bind", Addr: params.bindAddr, Err: err}
		}

		mopts := []options.Option[multicast.Params]{
			multicast.WithLogger(params.logger.With().Str("subscope", "mdns_browser").Logger()),
		}
		if params.queryInterval > 0 {
			mopts = append(mopts, multicast.WithQueryInterval(params.queryInterval))
		}
		if params.queryTimeout > 0 {
			mopts = append(mopts, multicast.WithQueryTimeout(params.queryTimeout))
		}
		if params.missLimit > 0 {
			mopts = append(mopts, multicast.WithMissLimit(params.missLimit))
		}

		mb, err := multicast.NewBrowser(bind, mopts...)
		if err != nil {
			return nil, &TransportError{Op: "create", Addr: params.bindAddr, Err: err}
		}
		browser = mb
		logger.Debug().Str("bind", bind.String()).Msg("initializing discovery client")
	}

	c := &Client{
		serviceType:   st,
		bindAddr:      params.bindAddr,
		hostname:      params.hostname,
		browser:       browser,
		detailLookups: params.detailLookups,
		logger:        logger,
		metrics:       newClientMetrics(st),
		index:         map[string]ServerRecord{},
	}
	c.listener = &clientListener{c: c}

	if err := browser.AddListener(st.Wire(), c.listener); err != nil {
		_ = browser.Close()
		return nil, &TransportError{Op: "subscribe", Addr: params.bindAddr, Err: err}
	}

	return c, nil
}

// ServiceType returns the type the client watches
func (c *Client) ServiceType() ServiceType {
	return c.serviceType
}

// Hostname returns the hostname hint given at construction
func (c *Client) Hostname() string {
	return c.hostname
}

// AddObserver registers o for future events. Past events are not replayed.
func (c *Client) AddObserver(o Observer) ObserverID {
	id := c.observers.add(o)
	c.logger.Debug().
		Str("observer", id.String()).
		Int("observers", c.observers.len()).
		Msg("observer added")
	return id
}

// RemoveObserver unregisters the observer with the given id
func (c *Client) RemoveObserver(id ObserverID) bool {
	return c.observers.remove(id)
}

// Servers returns the currently running servers ordered by name
func (c *Client) Servers() []ServerRecord {
	c.idxMu.RLock()
	recs := lo.Values(c.index)
	c.idxMu.RUnlock()

	slices.SortFunc(recs, ServerRecord.Compare)
	return recs
}

// Metrics returns the collectors of the client
func (c *Client) Metrics() []prometheus.Collector {
	return c.metrics.list()
}

// Stop detaches from the transport and releases it. Calling Stop again, or
// from inside an observer, is safe. When no delivery is running Stop waits
// for the transport to drain. While one is running, which includes the call
// from an observer, the transport is cancelled instead and that delivery may
// still finish after Stop returns.
func (c *Client) Stop() error {
	if c.stopped.Swap(true) {
		return nil
	}

	c.logger.Debug().Msg("stopping discovery client")
	c.browser.RemoveListener(c.serviceType.Wire(), c.listener)

	if !c.mu.TryLock() {
		c.browser.Cancel()
		return nil
	}
	c.mu.Unlock()

	if err := c.browser.Close(); err != nil {
		return &TransportError{Op: "close", Addr: c.bindAddr, Err: err}
	}
	return nil
}

func (l *clientListener) ServiceAdded(ev transport.Event) {
	l.c.handleAdded(ev)
}

func (l *clientListener) ServiceResolved(ev transport.Event) {
	l.c.handleResolved(ev)
}

func (l *clientListener) ServiceRemoved(ev transport.Event) {
	l.c.handleRemoved(ev)
}

// handleAdded only hints that details are coming
func (c *Client) handleAdded(ev transport.Event) {
	if c.stopped.Load() {
		return
	}
	c.metrics.events.WithLabelValues("added").Inc()
	c.logger.Debug().Str("name", ev.Name).Msg("server announced")

	if c.detailLookups {
		c.browser.RequestDetails(ev.Type, ev.Name)
	}
}

func (c *Client) handleResolved(ev transport.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped.Load() {
		return
	}
	c.metrics.events.WithLabelValues("resolved").Inc()

	entry := ev.Entry
	if entry.Instance == "" {
		entry.Instance = ev.Name
	}
	rec, err := recordFromEntry(c.serviceType, entry)
	if err != nil {
		c.metrics.rejected.Inc()
		c.logger.Warn().
			Err(fmt.Errorf("building record for %q: %w", ev.Name, err)).
			Send()
		return
	}

	if absent := absentKeys(c.serviceType, entry); len(absent) > 0 {
		c.logger.Debug().
			Str("name", rec.ServiceName()).
			Strs("absent_keys", absent).
			Msg("announcement lacks properties")
	}

	c.idxMu.Lock()
	_, known := c.index[rec.Key()]
	c.index[rec.Key()] = rec
	size := len(c.index)
	c.idxMu.Unlock()

	if known {
		c.logger.Debug().
			Str("name", rec.ServiceName()).
			Str("url", rec.URL()).
			Msg("server details updated")
		return
	}

	c.metrics.serversUp.Set(float64(size))
	c.logger.Info().
		Str("name", rec.ServiceName()).
		Str("url", rec.URL()).
		Msg("server running")
	c.notify(rec, Observer.ServerUp)
}

func (c *Client) handleRemoved(ev transport.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped.Load() {
		return
	}
	c.metrics.events.WithLabelValues("removed").Inc()

	entry := ev.Entry
	if entry.Instance == "" {
		entry.Instance = ev.Name
	}

	c.idxMu.Lock()
	var last *ServerRecord
	if prev, found := c.index[entry.Instance]; found {
		last = &prev
		delete(c.index, entry.Instance)
	}
	size := len(c.index)
	c.idxMu.Unlock()

	rec, err := shutdownRecord(c.serviceType, entry, last)
	if err != nil {
		c.metrics.rejected.Inc()
		c.logger.Warn().
			Err(fmt.Errorf("building shutdown record: %w", err)).
			Send()
		return
	}

	c.metrics.serversUp.Set(float64(size))
	c.logger.Info().
		Str("name", rec.ServiceName()).
		Bool("was_known", last != nil).
		Msg("server stopped")
	c.notify(rec, Observer.ServerDown)
}

// notify must be called with mu held
func (c *Client) notify(rec ServerRecord, call func(Observer, ServerRecord)) {
	regs := c.observers.snapshot()
	c.logger.Debug().Int("observers", len(regs)).Msg("informing observers")

	start := time.Now()
	fanOut(regs, func(o Observer) { call(o, rec) }, func(id ObserverID, r any) {
		c.metrics.observerPanics.Inc()
		c.logger.Error().
			Str("observer", id.String()).
			Str("name", rec.ServiceName()).
			Interface("panic", r).
			Msg("observer panicked")
	})
	c.metrics.dispatchHist.Observe(time.Since(start).Seconds())
}
