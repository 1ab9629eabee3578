package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReactionMetrics tracks the reaction engine.
type ReactionMetrics struct {
	Applied  *prometheus.CounterVec
	Duration prometheus.Histogram
}

func NewReactionMetrics(reg prometheus.Registerer) *ReactionMetrics {
	m := &ReactionMetrics{
		Applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_total",
			Help:      "Total reaction requests, by kind and result.",
		}, []string{"kind", "result"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaction_duration_seconds",
			Help:      "Duration of the reaction transaction in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	reg.MustRegister(m.Applied, m.Duration)
	return m
}
