package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_connections_accepted_total",
		Help: "Connections the relay accepted.",
	})

	connectionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_connections_closed_total",
		Help: "Connections the relay tore down.",
	})

	exchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_exchanges_total",
		Help: "Completed request/reply exchanges by command.",
	}, []string{"command"})

	protocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_protocol_errors_total",
		Help: "Requests dropped because they could not be decoded or served.",
	})

	droppedReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_dropped_replies_total",
		Help: "Replies abandoned because the socket would not take them without blocking.",
	})
)
