package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	EventsPublished   *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	RoomJoins         *prometheus.CounterVec
	RateLimitRejected *prometheus.CounterVec
	TaskTransitions   *prometheus.CounterVec
	UpstreamFailures  *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of open realtime client connections.",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to rooms, by event name.",
		}, []string{"event"}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber's send buffer was full.",
		}, []string{"event"}),
		RoomJoins: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_membership_changes_total",
			Help:      "Room joins and leaves.",
		}, []string{"op"}),
		RateLimitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the abuse guard, by route class.",
		}, []string{"class"}),
		TaskTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_transitions_total",
			Help:      "Successful task state transitions, by resulting status.",
		}, []string{"status"}),
		UpstreamFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Store and object-storage failures, by collaborator.",
		}, []string{"collaborator"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
