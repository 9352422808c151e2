package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomchat_chat_members",
		Help: "Connections currently attached to a chat room.",
	})
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomchat_active_rooms",
		Help: "Rooms with at least one attached connection.",
	})
	LobbySubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomchat_lobby_subscribers",
		Help: "Connections currently subscribed to room list events.",
	})
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomchat_chat_messages_total",
		Help: "Chat messages by outcome.",
	}, []string{"result"})
	Teardowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomchat_room_teardowns_total",
		Help: "Room teardown requests by outcome.",
	}, []string{"result"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
