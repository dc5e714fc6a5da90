package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TreeMetrics exports tree maintenance counters. A nil *TreeMetrics is valid
// and records nothing.
type TreeMetrics struct {
	subtreesQueued   prometheus.Counter
	nodesFreed       prometheus.Counter
	pending          prometheus.Gauge
	sweepDuration    prometheus.Histogram
	solidConversions *prometheus.CounterVec
	stabilizeSteps   prometheus.Histogram
	episodes         prometheus.Counter
	collisions       prometheus.Counter
}

// NewTreeMetrics registers the tree metrics on reg.
func NewTreeMetrics(reg prometheus.Registerer) *TreeMetrics {
	factory := promauto.With(reg)
	return &TreeMetrics{
		subtreesQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "lctree_reclaim_subtrees_queued_total",
			Help: "Subtrees handed to the reclaimer",
		}),
		nodesFreed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lctree_reclaim_nodes_freed_total",
			Help: "Nodes torn down by the reclaimer",
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lctree_reclaim_pending_subtrees",
			Help: "Subtrees waiting for the reclaimer",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lctree_reclaim_sweep_duration_seconds",
			Help:    "Reclaimer sweep duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
		solidConversions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lctree_solid_conversions_total",
			Help: "Layout transforms by result",
		}, []string{"result"}), // "ok" or "declined"
		stabilizeSteps: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lctree_stabilize_steps",
			Help:    "Rounds needed to stabilize a relevance-weighted value",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		}),
		episodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "lctree_search_episodes_total",
			Help: "Completed search episodes",
		}),
		collisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "lctree_search_collisions_total",
			Help: "Episodes abandoned on a claimed leaf",
		}),
	}
}

func (m *TreeMetrics) SubtreeQueued(pending int) {
	if m == nil {
		return
	}
	m.subtreesQueued.Inc()
	m.pending.Set(float64(pending))
}

func (m *TreeMetrics) Swept(freed, pending int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.nodesFreed.Add(float64(freed))
	m.pending.Set(float64(pending))
	m.sweepDuration.Observe(elapsed.Seconds())
}

func (m *TreeMetrics) SolidConversion(ok bool) {
	if m == nil {
		return
	}
	result := "declined"
	if ok {
		result = "ok"
	}
	m.solidConversions.WithLabelValues(result).Inc()
}

func (m *TreeMetrics) Stabilized(steps int) {
	if m == nil {
		return
	}
	m.stabilizeSteps.Observe(float64(steps))
}

func (m *TreeMetrics) Episode() {
	if m == nil {
		return
	}
	m.episodes.Inc()
}

func (m *TreeMetrics) Collision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}
