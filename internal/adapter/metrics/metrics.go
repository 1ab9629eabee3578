package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradingspot"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Set bundles every metric group so wiring code can pass one value around.
type Set struct {
	HTTP      *HTTPMetrics
	Reactions *ReactionMetrics
	Sync      *SyncMetrics
	Cache     *CacheMetrics
	Redis     *RedisMetrics
	Upstream  *UpstreamMetrics
	WebSocket *WebSocketMetrics
	Auth      *AuthMetrics
	DB        *DBMetrics
}

func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		HTTP:      NewHTTPMetrics(reg),
		Reactions: NewReactionMetrics(reg),
		Sync:      NewSyncMetrics(reg),
		Cache:     NewCacheMetrics(reg),
		Redis:     NewRedisMetrics(reg),
		Upstream:  NewUpstreamMetrics(reg),
		WebSocket: NewWebSocketMetrics(reg),
		Auth:      NewAuthMetrics(reg),
		DB:        NewDBMetrics(reg),
	}
}

// BreakerStateValue maps a circuit breaker state name to the gauge encoding
// shared by the redis and upstream breakers: closed=0, half-open=1, open=2.
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
