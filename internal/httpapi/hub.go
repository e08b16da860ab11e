// ABOUTME: Fan-out of server records to websocket subscribers
// ABOUTME: Slow subscribers lose records instead of holding up discovery
package httpapi

import (
	"sync"

	"github.com/collabnet/svnedge-discovery/pkg/discovery"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const subscriberBuffer = 16

type hub struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]chan discovery.ServerRecord
	dropped prometheus.Counter
}

var _ discovery.Observer = (*hub)(nil)

func newHub(dropped prometheus.Counter) *hub {
	return &hub{
		subs:    map[uuid.UUID]chan discovery.ServerRecord{},
		dropped: dropped,
	}
}

func (h *hub) subscribe() (uuid.UUID, <-chan discovery.ServerRecord) {
	id := uuid.New()
	ch := make(chan discovery.ServerRecord, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *hub) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, found := h.subs[id]; found {
		close(ch)
		delete(h.subs, id)
	}
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *hub) ServerUp(r discovery.ServerRecord) {
	h.broadcast(r)
}

func (h *hub) ServerDown(r discovery.ServerRecord) {
	h.broadcast(r)
}

func (h *hub) broadcast(r discovery.ServerRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- r:
		default:
			h.dropped.Inc()
		}
	}
}
