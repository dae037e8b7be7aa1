package mvtree

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters reported by trees and managers. The metrics are
// created unregistered; call Register to expose them.
type Metrics struct {
	Commits       prometheus.Counter
	Rollbacks     prometheus.Counter
	CommitLatency prometheus.Histogram
	ActiveReaders prometheus.Gauge

	Splits prometheus.Counter
	Merges prometheus.Counter
	Steals prometheus.Counter
}

// NewMetrics creates a fresh, unregistered set of metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mvtree",
			Name:      "commits_total",
			Help:      "Write transactions committed.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mvtree",
			Name:      "rollbacks_total",
			Help:      "Write transactions rolled back.",
		}),
		CommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mvtree",
			Name:      "commit_duration_seconds",
			Help:      "Time spent resolving and publishing a commit.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		ActiveReaders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mvtree",
			Name:      "active_readers",
			Help:      "Read transactions currently pinning a snapshot.",
		}),
		Splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mvtree",
			Name:      "node_splits_total",
			Help:      "Nodes split after overflowing.",
		}),
		Merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mvtree",
			Name:      "node_merges_total",
			Help:      "Underflowing nodes merged with a sibling.",
		}),
		Steals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mvtree",
			Name:      "node_steals_total",
			Help:      "Underflowing nodes refilled from a sibling.",
		}),
	}
}

// Register registers every metric with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Commits, m.Rollbacks, m.CommitLatency, m.ActiveReaders,
		m.Splits, m.Merges, m.Steals,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
