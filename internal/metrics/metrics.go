package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connected is 1 while a registered IRC session is active.
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "irc_connected",
		Help: "Whether a registered IRC session is active (1) or not (0)",
	})

	// Sessions counts connection attempts made by the supervisor.
	Sessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irc_sessions_total",
		Help: "Total number of IRC sessions started",
	})

	// SessionFailures counts sessions that ended with a fault.
	SessionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irc_session_failures_total",
		Help: "Total number of IRC sessions that ended with an error",
	})

	// NickCollisions counts nickname-in-use replies.
	NickCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irc_nick_collisions_total",
		Help: "Total number of nickname-in-use replies received",
	})

	// LinesReceived counts raw protocol lines.
	LinesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "irc_lines_received_total",
		Help: "Total number of protocol lines received",
	})

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irc_events_received_total",
			Help: "Total number of inbound message events per kind",
		},
		[]string{"kind"},
	)

	// EventsRouted counts submissions per destination.
	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_events_routed_total",
			Help: "Total number of events submitted per destination",
		},
		[]string{"destination"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_events_dropped_total",
			Help: "Total number of events dropped by the router per reason",
		},
		[]string{"reason"},
	)

	EventsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_events_ignored_total",
			Help: "Total number of events not routed because of their kind",
		},
		[]string{"kind"},
	)

	// QueueDepth is the number of pending events per destination.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "destination_queue_depth",
			Help: "Current number of pending events per destination",
		},
		[]string{"destination"},
	)

	EventsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writer_events_written_total",
			Help: "Total number of events written per writer and destination",
		},
		[]string{"writer", "destination"},
	)

	WriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writer_errors_total",
			Help: "Total number of failed writes or flushes per writer",
		},
		[]string{"writer"},
	)
)
