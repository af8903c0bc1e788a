// Package metrics exposes the engine's stats() surface (spec section 6)
// both as a plain Stats struct and as Prometheus collectors, grounded on
// the teacher pack's cuemby-warren metrics package. Unlike that package's
// global package-level vars registered against the default registry,
// each Engine here owns a private *prometheus.Registry: graphdb is an
// embeddable library, and a process may open more than one Engine, which
// would double-register global collectors and panic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds every gauge/counter/histogram the engine keeps
// current as it runs.
type Collectors struct {
	registry *prometheus.Registry

	NodesPerLabel *prometheus.GaugeVec
	RelsPerType   *prometheus.GaugeVec

	ActiveReaders prometheus.Gauge
	WriteTxHeld   prometheus.Gauge
	WALQueueDepth prometheus.Gauge

	PlanCacheHits   prometheus.Counter
	PlanCacheMisses prometheus.Counter

	QueryDuration *prometheus.HistogramVec
}

// New constructs a fresh Collectors bound to its own registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		NodesPerLabel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graphdb_nodes_per_label",
			Help: "Live node count per label.",
		}, []string{"label"}),
		RelsPerType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graphdb_rels_per_type",
			Help: "Live relationship count per type.",
		}, []string{"type"}),
		ActiveReaders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphdb_active_readers",
			Help: "Number of open read transactions.",
		}),
		WriteTxHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphdb_write_tx_held",
			Help: "1 if a write transaction currently holds the writer lock, else 0.",
		}),
		WALQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphdb_wal_queue_depth",
			Help: "Pending group-commit waiters in the WAL.",
		}),
		PlanCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_plan_cache_hits_total",
			Help: "Plan cache lookups served from cache.",
		}),
		PlanCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphdb_plan_cache_misses_total",
			Help: "Plan cache lookups that required planning.",
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphdb_query_duration_seconds",
			Help:    "Statement execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	reg.MustRegister(
		c.NodesPerLabel, c.RelsPerType,
		c.ActiveReaders, c.WriteTxHeld, c.WALQueueDepth,
		c.PlanCacheHits, c.PlanCacheMisses,
		c.QueryDuration,
	)
	return c
}

// Handler returns an HTTP handler serving this Collectors' registry in
// the Prometheus exposition format, for embedding hosts that scrape.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Timer measures an operation's duration for a histogram observation.
type Timer struct{ start time.Time }

func NewTimer() *Timer { return &Timer{start: time.Now()} }

func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(time.Since(t.start).Seconds())
}

// Stats is the plain-struct rendering of stats() (spec section 6):
// "nodes_per_label, rels_per_type, cache_hit_rates, wal_queue_depth, ...".
type Stats struct {
	NodesPerLabel map[string]int64
	RelsPerType   map[string]int64
	PlanCacheLen  int
	PlanCacheHitRate float64
	ActiveReaders int
	WriteTxHeld   bool
	WALQueueDepth int
}
