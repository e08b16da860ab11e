// ABOUTME: Prometheus collectors of the HTTP control API
// ABOUTME: Tracks request timing and counts plus websocket subscribers
package httpapi

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist prometheus.Histogram
	requestsCnt    *prometheus.CounterVec
	subscribers    prometheus.GaugeFunc
	droppedCnt     prometheus.Counter
}

func newMetrics(subscribers func() float64) *metrics {
	const (
		ns = "svnedge_discovery"
		ss = "http_controller"
	)
	hist := prometheus_helpers.NewHistOpts(
		"handle_time_hist",
		prometheus_helpers.HistOptsWithSubsystem(ss),
		prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
	)
	hist.Namespace = ns

	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*hist),
		requestsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: ss,
			Name:      "requests_cnt",
			Help:      "Count of incoming requests by route",
		}, []string{"route"}),
		subscribers: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: ss,
			Name:      "event_subscribers",
			Help:      "Connected event stream subscribers",
		}, subscribers),
		droppedCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: ss,
			Name:      "dropped_events_cnt",
			Help:      "Count of records not delivered to slow subscribers",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.requestsCnt,
		m.subscribers,
		m.droppedCnt,
	}
}
