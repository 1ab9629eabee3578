package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics tracks catalog sync runs.
type SyncMetrics struct {
	Runs     *prometheus.CounterVec
	Items    *prometheus.CounterVec
	Duration prometheus.Histogram
	LastRun  prometheus.Gauge
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total sync runs, by outcome (success, partial, failed, skipped).",
		}, []string{"outcome"}),
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Items processed by sync, by result (created, updated, removed, error).",
		}, []string{"result"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of sync runs in seconds.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed sync run.",
		}),
	}

	reg.MustRegister(m.Runs, m.Items, m.Duration, m.LastRun)
	return m
}
