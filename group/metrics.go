package group

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "groupdir"

// Metrics holds the Prometheus collectors of one directory. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheSwept     prometheus.Counter
	cacheSize      prometheus.Gauge
	queries        *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	queueFailures  prometheus.Counter
	resyncs        *prometheus.CounterVec
	inviteAccepts  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// gets a private registry, so several directories can coexist in one
// process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Fresh metadata served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Lookups that found no fresh entry.",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted to stay within capacity.",
		}),
		cacheSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "swept_total",
			Help:      "Stale entries removed by the periodic sweep.",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently cached.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "queries_total",
			Help:      "Group service round-trips by operation and result.",
		}, []string{"operation", "result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Items waiting in the notification queue.",
		}),
		queueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "handler_failures_total",
			Help:      "Queue items whose handler failed.",
		}),
		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "resyncs_total",
			Help:      "Bulk resyncs by result.",
		}, []string{"result"}),
		inviteAccepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invite_accepts_total",
			Help:      "Invite acceptances by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
		m.cacheSwept,
		m.cacheSize,
		m.queries,
		m.queueDepth,
		m.queueFailures,
		m.resyncs,
		m.inviteAccepts,
	)
	return m
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) cacheEvicted() {
	if m != nil {
		m.cacheEvictions.Inc()
	}
}

func (m *Metrics) cacheSweptN(n int) {
	if m != nil && n > 0 {
		m.cacheSwept.Add(float64(n))
	}
}

func (m *Metrics) setCacheSize(n int) {
	if m != nil {
		m.cacheSize.Set(float64(n))
	}
}

func (m *Metrics) query(operation string, err error) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(operation, resultLabel(err)).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

func (m *Metrics) queueFailure() {
	if m != nil {
		m.queueFailures.Inc()
	}
}

func (m *Metrics) resync(err error) {
	if m != nil {
		m.resyncs.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) inviteAccept(err error) {
	if m != nil {
		m.inviteAccepts.WithLabelValues(resultLabel(err)).Inc()
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
