package metrics

import "github.com/prometheus/client_golang/prometheus"

// AuthMetrics counts admin login attempts.
type AuthMetrics struct {
	LoginAttempts *prometheus.CounterVec
}

func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Admin login attempts, by result (success, rejected, rate_limited, error).",
		}, []string{"result"}),
	}

	reg.MustRegister(m.LoginAttempts)
	return m
}
