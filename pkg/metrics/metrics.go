package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiosync_events_total",
		Help: "Inbound room events dispatched, by type.",
	}, []string{"type"})

	EventErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiosync_event_errors_total",
		Help: "Room events dropped by handler failure or bad payload, by type.",
	}, []string{"type"})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiosync_broadcasts_total",
		Help: "Events fanned out to room broadcast groups.",
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiosync_active_rooms",
		Help: "Rooms with at least one local connection.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiosync_active_connections",
		Help: "Open websocket connections.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
