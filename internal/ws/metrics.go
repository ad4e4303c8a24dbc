package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomrelay_connections",
		Help: "Live WebSocket connections, joined or not.",
	})
	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomrelay_rooms",
		Help: "Rooms with at least one member.",
	})
	inboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomrelay_inbound_messages_total",
		Help: "Inbound frames by message type.",
	}, []string{"type"})
	broadcastSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomrelay_broadcast_skipped_total",
		Help: "Deliveries skipped because the recipient was closed or its queue was full.",
	})
)
