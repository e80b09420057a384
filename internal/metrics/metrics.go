// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WsConnections tracks the number of registered live connections.
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talkroom_ws_connections",
		Help: "Current number of registered websocket connections",
	})

	// RoomSubscribers tracks the total number of room subscriptions across
	// all in-memory fan-out sets.
	RoomSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talkroom_room_subscribers",
		Help: "Current number of connection-room subscriptions",
	})

	// MessagesPersisted counts messages durably recorded.
	MessagesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talkroom_messages_persisted_total",
		Help: "Total number of chat messages persisted",
	})

	// MessagesDelivered counts per-connection outbound deliveries.
	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talkroom_messages_delivered_total",
		Help: "Total number of per-connection message deliveries",
	})

	// FramesDropped counts inbound frames dropped as malformed or unknown.
	FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talkroom_frames_dropped_total",
		Help: "Total number of inbound frames dropped without dispatch",
	})
)

func init() {
	prometheus.MustRegister(
		WsConnections,
		RoomSubscribers,
		MessagesPersisted,
		MessagesDelivered,
		FramesDropped,
	)
}
