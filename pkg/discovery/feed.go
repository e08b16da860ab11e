// ABOUTME: Bounded event channel between transport callbacks and an application loop
// ABOUTME: Observer on the producer side, blocking Next with context cancellation on the consumer side
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrFeedClosed is returned by Next once the feed is closed and drained
var ErrFeedClosed = errors.New("feed closed")

// Feed queues up and down records for a consumer loop
type Feed struct {
	ch      chan ServerRecord
	done    chan struct{}
	once    sync.Once
	params  feedParams
	metrics *feedMetrics
}

var _ Observer = (*Feed)(nil)

// NewFeed creates a feed holding up to capacity records
func NewFeed(capacity int, opts ...options.Option[feedParams]) (*Feed, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got: %d", capacity)
	}

	params := defaultFeedParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	f := &Feed{
		ch:     make(chan ServerRecord, capacity),
		done:   make(chan struct{}),
		params: params,
	}
	f.metrics = newFeedMetrics(func() float64 { return float64(len(f.ch)) })
	return f, nil
}

func (f *Feed) ServerUp(r ServerRecord) {
	f.push(r)
}

func (f *Feed) ServerDown(r ServerRecord) {
	f.push(r)
}

// push waits at most the send timeout for room, then drops the record
func (f *Feed) push(r ServerRecord) {
	select {
	case <-f.done:
		return
	default:
	}

	select {
	case f.ch <- r:
		return
	default:
	}

	timer := time.NewTimer(f.params.sendTimeout)
	defer timer.Stop()

	select {
	case f.ch <- r:
	case <-f.done:
	case <-timer.C:
		f.metrics.dropped.Inc()
		f.params.logger.Warn().
			Str("name", r.ServiceName()).
			Str("event", r.Event().String()).
			Msg("feed full, record dropped")
	}
}

// Next blocks until a record is available, ctx is done or the feed is closed.
// Records queued before Close are still returned.
func (f *Feed) Next(ctx context.Context) (ServerRecord, error) {
	select {
	case r := <-f.ch:
		return r, nil
	default:
	}

	select {
	case r := <-f.ch:
		return r, nil
	case <-ctx.Done():
		return ServerRecord{}, ctx.Err()
	case <-f.done:
		select {
		case r := <-f.ch:
			return r, nil
		default:
			return ServerRecord{}, ErrFeedClosed
		}
	}
}

// Close stops accepting records. It is safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// Metrics returns the collectors of the feed
func (f *Feed) Metrics() []prometheus.Collector {
	return f.metrics.list()
}
