package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pool operations by kind. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	rets   prometheus.Counter
	drops  prometheus.Counter
}

// NewMetrics registers the pool counters on reg. name distinguishes pools
// that share a registry. A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	ops := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace:   "ssr",
		Subsystem:   "pool",
		Name:        "operations_total",
		Help:        "Total number of buffer pool operations by outcome.",
		ConstLabels: prometheus.Labels{"pool": name},
	}, []string{"op"})

	return &Metrics{
		hits:   ops.WithLabelValues("rent_hit"),
		misses: ops.WithLabelValues("rent_miss"),
		rets:   ops.WithLabelValues("return"),
		drops:  ops.WithLabelValues("drop"),
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) ret() {
	if m != nil {
		m.rets.Inc()
	}
}

func (m *Metrics) drop() {
	if m != nil {
		m.drops.Inc()
	}
}
