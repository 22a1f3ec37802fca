// Package metrics holds the Prometheus collectors of the dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "irrigation_dashboard"

var (
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbound_messages_total",
		Help:      "Broker messages received, by topic and whether a display consumed them.",
	}, []string{"topic", "routed"})

	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publishes_total",
		Help:      "Outbound publishes, by topic and result.",
	}, []string{"topic", "result"})

	Rejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_inputs_total",
		Help:      "Operator inputs rejected by validation.",
	}, []string{"input"})

	BrokerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "broker_connected",
		Help:      "1 while the broker link is up.",
	})

	ConnectionLosses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_losses_total",
		Help:      "Broker connection drops.",
	})

	VoiceSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "voice_sessions_total",
		Help:      "Voice sessions, by outcome.",
	}, []string{"outcome"})

	VoiceCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "voice_commands_total",
		Help:      "Commands recognised in transcripts, by topic.",
	}, []string{"topic"})

	UIClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ui_clients",
		Help:      "Connected WebSocket clients.",
	})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
)
