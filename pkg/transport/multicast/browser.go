// ABOUTME: Query based mDNS browser built on hashicorp/mdns
// ABOUTME: Turns periodic query rounds into added, resolved and removed events
package multicast

import (
	"context"
	"fmt"
	"slices"
	"log"
	"sync"
	"time"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
	"github.com/hashicorp/mdns"
	"github.com/horockey/go-toolbox/options"
	"github.com/samber/lo"
)

// queryFunc is mdns.QueryContext, replaced in tests
type queryFunc func(ctx context.Context, params *mdns.QueryParam) error

// Browser watches service types on the multicast domain
type Browser struct {
	bind   transport.Binding
	params Params
	query  queryFunc
	// stdlog routes hashicorp/mdns output into the zerolog logger
	stdlog *log.Logger

	mu      sync.Mutex
	watches map[string]*watch
	closed  bool

	wg sync.WaitGroup
}

type watch struct {
	wire    string
	service string
	domain  string
	cancel  context.CancelFunc

	// guarded by Browser.mu
	listeners []transport.Listener

	lookups chan string

	// owned by the watch goroutine
	known map[string]*sighting
}

type sighting struct {
	entry  transport.Entry
	misses int
}

var _ transport.Browser = (*Browser)(nil)

// NewBrowser creates a browser attached to bind. No traffic is sent until a
// listener is added.
func NewBrowser(bind transport.Binding, opts ...options.Option[Params]) (*Browser, error) {
	p := defaultParams("mdns_browser")
	if err := options.ApplyOptions(&p, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	return &Browser{
		bind:    bind,
		params:  p,
		query:   mdns.QueryContext,
		stdlog:  log.New(p.logger, "", 0),
		watches: map[string]*watch{},
	}, nil
}

// AddListener subscribes l to events for the wire type serviceType
func (b *Browser) AddListener(serviceType string, l transport.Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return transport.ErrClosed
	}

	if w, found := b.watches[serviceType]; found {
		w.listeners = append(w.listeners, l)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	service, domain := transport.SplitType(serviceType)
	w := &watch{
		wire:      serviceType,
		service:   service,
		domain:    domain,
		cancel:    cancel,
		listeners: []transport.Listener{l},
		lookups:   make(chan string, 1),
		known:     map[string]*sighting{},
	}
	b.watches[serviceType] = w

	b.params.logger.Debug().
		Str("type", serviceType).
		Str("bind", b.bind.String()).
		Msg("starting browse")

	b.wg.Add(1)
	go b.run(ctx, w)

	return nil
}

// RemoveListener detaches l. The query loop of a type stops once it has no
// listeners left.
func (b *Browser) RemoveListener(serviceType string, l transport.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, found := b.watches[serviceType]
	if !found {
		return
	}

	w.listeners = slices.DeleteFunc(w.listeners, func(el transport.Listener) bool {
		return el == l
	})
	if len(w.listeners) == 0 {
		w.cancel()
		delete(b.watches, serviceType)
	}
}

// RequestDetails schedules an extra query round for the type. Rounds resolve
// every instance, so the name only shows up in logs.
func (b *Browser) RequestDetails(serviceType, name string) {
	b.mu.Lock()
	w, found := b.watches[serviceType]
	b.mu.Unlock()
	if !found {
		return
	}

	select {
	case w.lookups <- name:
	default:
	}
}

// Cancel stops every query loop without waiting for them, so listeners may
// call it. A callback already running may still finish.
func (b *Browser) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for wire, w := range b.watches {
		w.cancel()
		delete(b.watches, wire)
	}

	b.params.logger.Debug().Msg("browser closed")
}

// Close stops every query loop and waits for them to return, including any
// listener callback in flight. Calling it from a listener deadlocks; use
// Cancel there.
func (b *Browser) Close() error {
	b.Cancel()
	b.wg.Wait()
	return nil
}

func (b *Browser) run(ctx context.Context, w *watch) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.params.interval)
	defer ticker.Stop()

	b.round(ctx, w, true)
	for {
		select {
		case <-ctx.Done():
			return
		case name := <-w.lookups:
			b.params.logger.Debug().
				Str("type", w.wire).
				Str("name", name).
				Msg("detail lookup requested")
			b.round(ctx, w, false)
		case <-ticker.C:
			b.round(ctx, w, true)
		}
	}
}

// round runs one query and reconciles the answers with the known instances.
// Misses are only counted for periodic rounds.
func (b *Browser) round(ctx context.Context, w *watch, countMisses bool) {
	entries := make(chan *mdns.ServiceEntry, 16) //nolint: mnd
	answers := map[string]transport.Entry{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		for se := range entries {
			if entry, ok := w.convert(se); ok {
				answers[entry.Instance] = entry
			}
		}
	}()

	err := b.query(ctx, &mdns.QueryParam{
		Service:   w.service,
		Domain:    w.domain,
		Timeout:   b.params.timeout,
		Interface: b.bind.Iface,
		Entries:   entries,
		Logger:    b.stdlog,
	})
	close(entries)
	<-done

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		b.params.logger.Warn().
			Err(fmt.Errorf("querying %s: %w", w.wire, err)).
			Send()
		return
	}

	names := lo.Keys(answers)
	slices.Sort(names)
	for _, name := range names {
		entry := answers[name]
		prev, found := w.known[name]
		switch {
		case !found:
			w.known[name] = &sighting{entry: entry}
			b.dispatch(ctx, w, transport.Listener.ServiceAdded, entry)
			b.dispatch(ctx, w, transport.Listener.ServiceResolved, entry)
		case !prev.entry.Equal(entry):
			prev.entry = entry
			prev.misses = 0
			b.dispatch(ctx, w, transport.Listener.ServiceResolved, entry)
		default:
			prev.misses = 0
		}
	}

	if !countMisses {
		return
	}

	missing := lo.Filter(lo.Keys(w.known), func(name string, _ int) bool {
		_, answered := answers[name]
		return !answered
	})
	slices.Sort(missing)
	for _, name := range missing {
		s := w.known[name]
		s.misses++
		if s.misses < b.params.missLimit {
			continue
		}
		delete(w.known, name)
		b.dispatch(ctx, w, transport.Listener.ServiceRemoved, s.entry)
	}
}

func (b *Browser) dispatch(
	ctx context.Context,
	w *watch,
	call func(transport.Listener, transport.Event),
	entry transport.Entry,
) {
	if ctx.Err() != nil {
		return
	}

	b.mu.Lock()
	listeners := slices.Clone(w.listeners)
	b.mu.Unlock()

	ev := transport.Event{Type: w.wire, Name: entry.Instance, Entry: entry}
	for _, l := range listeners {
		if ctx.Err() != nil {
			return
		}
		b.safeCall(call, l, ev)
	}
}

func (b *Browser) safeCall(call func(transport.Listener, transport.Event), l transport.Listener, ev transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.params.logger.Error().
				Str("type", ev.Type).
				Str("name", ev.Name).
				Interface("panic", r).
				Msg("listener panicked")
		}
	}()
	call(l, ev)
}

func (w *watch) convert(se *mdns.ServiceEntry) (transport.Entry, bool) {
	if se == nil {
		return transport.Entry{}, false
	}

	name, ok := instanceName(se.Name, w.service, w.domain)
	if !ok {
		return transport.Entry{}, false
	}

	return transport.Entry{
		Instance: name,
		Type:     w.wire,
		Host:     trimDot(se.Host),
		AddrV4:   se.AddrV4,
		AddrV6:   se.AddrV6,
		Port:     se.Port,
		Text:     slices.Clone(se.InfoFields),
	}, true
}
