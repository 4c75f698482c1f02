package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eduo_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eduo_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eduo_sessions_active",
		Help: "The current number of live game sessions.",
	})
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eduo_events_relayed_total",
		Help: "Gameplay events forwarded to session peers.",
	}, []string{"kind"})
	EventsRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eduo_events_rate_limited_total",
		Help: "Gameplay events rejected by the per-connection rate limit.",
	}, []string{"kind"})
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eduo_events_dropped_total",
		Help: "Gameplay events dropped for lacking a session or role.",
	}, []string{"kind"})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
