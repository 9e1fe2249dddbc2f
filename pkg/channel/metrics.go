package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "connects_total",
		Help:      "Transport connections successfully opened.",
	})
	metricReconnectsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "reconnects_scheduled_total",
		Help:      "Reconnect attempts scheduled after abnormal closes.",
	})
	metricReauths = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "reauth_attempts_total",
		Help:      "Reauthentication attempts by outcome.",
	}, []string{"outcome"})
	metricCommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "commands_sent_total",
		Help:      "Commands written to the transport.",
	})
	metricCommandsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "commands_blocked_total",
		Help:      "Commands rejected client-side by permission gating.",
	})
	metricFramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "frame_batches_received_total",
		Help:      "Screen frame batches accepted into the ring buffer.",
	})
	metricFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "frame_batches_dropped_total",
		Help:      "Screen frame batches dropped for missing seeScreen capability.",
	})
	metricResultsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "results_received_total",
		Help:      "Command results received.",
	})
	metricDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remotia",
		Subsystem: "channel",
		Name:      "decode_errors_total",
		Help:      "Inbound messages dropped because they failed to decode.",
	})
)
