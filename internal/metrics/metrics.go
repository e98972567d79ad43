package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_messages_posted_total",
			Help: "Total number of messages posted",
		},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_conversations_created_total",
			Help: "Total number of conversations created",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_status_transitions_total",
			Help: "Per-user message status changes by target status",
		},
		[]string{"status"},
	)

	HookVetoes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_hook_vetoes_total",
			Help: "Operations blocked by a before-hook",
		},
		[]string{"point"},
	)

	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_broadcasts_total",
			Help: "Broadcast attempts by driver, event and result",
		},
		[]string{"driver", "event", "result"},
	)

	BroadcastQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "messenger_broadcast_queue_depth",
			Help: "Events waiting in the async broadcast queue",
		},
	)

	SocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "messenger_ws_clients",
			Help: "Connected websocket clients on this instance",
		},
	)
)
