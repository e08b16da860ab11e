// ABOUTME: Prometheus collectors for discovery clients, registers and feeds
// ABOUTME: Collectors are per instance and labelled with the service type
package discovery

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "svnedge_discovery"

type clientMetrics struct {
	events         *prometheus.CounterVec
	serversUp      prometheus.Gauge
	rejected       prometheus.Counter
	observerPanics prometheus.Counter
	dispatchHist   prometheus.Histogram
}

func newClientMetrics(st ServiceType) *clientMetrics {
	const ss = "client"
	labels := prometheus.Labels{"service_type": st.Name()}

	histOpts := prometheus_helpers.NewHistOpts(
		"dispatch_time_hist",
		prometheus_helpers.HistOptsWithSubsystem(ss),
		prometheus_helpers.HistOptsWithHelp("Observer dispatch time distribution"),
	)
	histOpts.Namespace = metricsNamespace
	histOpts.ConstLabels = labels

	return &clientMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   ss,
			Name:        "transport_events_total",
			Help:        "Transport events handled by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		serversUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   ss,
			Name:        "servers_up",
			Help:        "Servers currently known to be running",
			ConstLabels: labels,
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   ss,
			Name:        "rejected_records_total",
			Help:        "Resolved services dropped because a record could not be built",
			ConstLabels: labels,
		}),
		observerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   ss,
			Name:        "observer_panics_total",
			Help:        "Observer calls that panicked",
			ConstLabels: labels,
		}),
		dispatchHist: prometheus.NewHistogram(*histOpts),
	}
}

func (m *clientMetrics) list() []prometheus.Collector {
	return []prometheus.Collector{m.events, m.serversUp, m.rejected, m.observerPanics, m.dispatchHist}
}

type registerMetrics struct {
	published prometheus.Counter
	withdrawn prometheus.Counter
	active    prometheus.Gauge
}

func newRegisterMetrics() *registerMetrics {
	const ss = "register"
	return &registerMetrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ss,
			Name:      "published_total",
			Help:      "Announcements published",
		}),
		withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ss,
			Name:      "withdrawn_total",
			Help:      "Announcements withdrawn",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: ss,
			Name:      "active",
			Help:      "Announcements currently published",
		}),
	}
}

func (m *registerMetrics) list() []prometheus.Collector {
	return []prometheus.Collector{m.published, m.withdrawn, m.active}
}

type feedMetrics struct {
	dropped prometheus.Counter
	queued  prometheus.GaugeFunc
}

func newFeedMetrics(depth func() float64) *feedMetrics {
	const ss = "feed"
	return &feedMetrics{
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: ss,
			Name:      "dropped_total",
			Help:      "Records dropped because the feed stayed full",
		}),
		queued: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: ss,
			Name:      "queued",
			Help:      "Records waiting to be received",
		}, depth),
	}
}

func (m *feedMetrics) list() []prometheus.Collector {
	return []prometheus.Collector{m.dropped, m.queued}
}
