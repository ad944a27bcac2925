// Package metrics is the ambient observability surface (D8): Prometheus
// counters/gauges for packets seen, verdicts reached, blocks installed,
// and alert queue depth. It is deliberately separate from C2/C9 — those
// own the spec-mandated data path (throughput windows, alert FIFO); this
// package only mirrors headline numbers for operators, with no effect on
// engine behavior if scraping never happens.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector wraps a dedicated Prometheus registry with the small,
// fixed set of gauges/counters this engine needs. Grounded on the
// teacher's internal/metrics package filling the same "operator-visible
// counters" role, rewritten onto a real metrics library the way
// Generativebots-ocx-backend-go-svc and zhaiiker-montecarlo-ip-searcher
// both do (both pull in prometheus/client_golang for exactly this).
type Collector struct {
	Registry       *prometheus.Registry
	PacketsTotal   *prometheus.CounterVec
	VerdictsTotal  *prometheus.CounterVec
	BlocksTotal    prometheus.Counter
	UnblocksTotal  prometheus.Counter
	AlertsDropped  prometheus.Counter
	BlockedSources prometheus.GaugeFunc
	AlertQueueSize prometheus.GaugeFunc
}

// New builds a Collector on its own registry rather than the global
// default — the engine constructs exactly one Collector, but tests and
// any future multi-instance use must not collide on metric names.
// blockedSources and alertQueueDepth are read lazily on each scrape so
// the collector never needs a reference cycle with the engine.
func New(blockedSources func() float64, alertQueueDepth func() float64) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	c := &Collector{
		Registry: registry,
		PacketsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ips",
			Name:      "packets_total",
			Help:      "Packets observed, labeled by whether they carried an IP layer.",
		}, []string{"layer"}),
		VerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ips",
			Name:      "verdicts_total",
			Help:      "Detection pipeline verdicts, labeled by reason.",
		}, []string{"reason"}),
		BlocksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ips",
			Name:      "blocks_total",
			Help:      "Firewall block installs that succeeded.",
		}),
		UnblocksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ips",
			Name:      "unblocks_total",
			Help:      "Firewall rule removals, successful or not.",
		}),
		AlertsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ips",
			Name:      "alerts_dropped_total",
			Help:      "Alerts dropped because the alert queue was at capacity.",
		}),
	}
	c.BlockedSources = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "ips",
		Name:      "blocked_sources",
		Help:      "Number of source IPs currently blocked.",
	}, blockedSources)
	c.AlertQueueSize = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "ips",
		Name:      "alert_queue_size",
		Help:      "Number of alerts currently queued for broadcast.",
	}, alertQueueDepth)
	return c
}

func (c *Collector) ObservePacket(hasIP bool) {
	layer := "other"
	if hasIP {
		layer = "ip"
	}
	c.PacketsTotal.WithLabelValues(layer).Inc()
}

func (c *Collector) ObserveVerdict(reason string) {
	if reason == "" {
		reason = "clean"
	}
	c.VerdictsTotal.WithLabelValues(reason).Inc()
}
