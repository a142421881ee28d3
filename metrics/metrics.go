package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "secretwolf_active_rooms",
		Help: "Number of rooms currently running.",
	})

	ConnectedPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "secretwolf_connected_players",
		Help: "Number of live websocket connections across all rooms.",
	})

	InboundMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secretwolf_inbound_messages_total",
		Help: "Client messages delivered to room actors.",
	})

	RoomAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretwolf_room_aborts_total",
		Help: "Rooms torn down involuntarily, by reason code.",
	}, []string{"reason"})
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
