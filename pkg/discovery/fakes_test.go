// ABOUTME: In-memory transport fakes for discovery tests
// ABOUTME: Records calls and lets tests drive browse events by hand
package discovery

import (
	"net"
	"slices"
	"sync"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
)

type fakeBrowser struct {
	mu        sync.Mutex
	listeners map[string][]transport.Listener
	lookups   []string
	removes   int
	closes    int
	cancels   int
	addErr    error
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{listeners: map[string][]transport.Listener{}}
}

func (b *fakeBrowser) AddListener(serviceType string, l transport.Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addErr != nil {
		return b.addErr
	}
	b.listeners[serviceType] = append(b.listeners[serviceType], l)
	return nil
}

func (b *fakeBrowser) RemoveListener(serviceType string, l transport.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removes++
	b.listeners[serviceType] = slices.DeleteFunc(b.listeners[serviceType], func(el transport.Listener) bool {
		return el == l
	})
}

func (b *fakeBrowser) RequestDetails(serviceType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups = append(b.lookups, serviceType+"/"+name)
}

func (b *fakeBrowser) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancels++
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

func (b *fakeBrowser) snapshot(serviceType string) []transport.Listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.listeners[serviceType])
}

func (b *fakeBrowser) added(e transport.Entry) {
	for _, l := range b.snapshot(e.Type) {
		l.ServiceAdded(transport.Event{Type: e.Type, Name: e.Instance, Entry: e})
	}
}

func (b *fakeBrowser) resolved(e transport.Entry) {
	for _, l := range b.snapshot(e.Type) {
		l.ServiceResolved(transport.Event{Type: e.Type, Name: e.Instance, Entry: e})
	}
}

func (b *fakeBrowser) removed(serviceType, name string) {
	for _, l := range b.snapshot(serviceType) {
		l.ServiceRemoved(transport.Event{Type: serviceType, Name: name})
	}
}

func csvnEntry(name string, ip string, port int) transport.Entry {
	return transport.Entry{
		Instance: name,
		Type:     ServiceTypeCSVN.Wire(),
		Host:     "svnhost.local",
		AddrV4:   net.ParseIP(ip),
		Port:     port,
		Text:     []string{"path=/csvn", "tfpath=/integration"},
	}
}

type fakePublication struct {
	ann       transport.Announcement
	withdraws int
}

func (p *fakePublication) Announcement() transport.Announcement { return p.ann }

func (p *fakePublication) Withdraw() error {
	p.withdraws++
	return nil
}

type fakePublisher struct {
	published []*fakePublication
	closes    int
	err       error
}

func (p *fakePublisher) Publish(a transport.Announcement) (transport.Publication, error) {
	if p.err != nil {
		return nil, p.err
	}
	pub := &fakePublication{ann: a}
	p.published = append(p.published, pub)
	return pub, nil
}

func (p *fakePublisher) Close() error {
	p.closes++
	return nil
}

// eventLog is an Observer recording what it receives
type eventLog struct {
	mu   sync.Mutex
	up   []ServerRecord
	down []ServerRecord
}

func (l *eventLog) ServerUp(r ServerRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.up = append(l.up, r)
}

func (l *eventLog) ServerDown(r ServerRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.down = append(l.down, r)
}

func (l *eventLog) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.up), len(l.down)
}
