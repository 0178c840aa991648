// Package fixmetrics exposes the Prometheus instruments fixgo's session
// state machine reports against. All instruments are labeled by
// session_key so one process running several sessions gets per-session
// breakdowns.
package fixmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// MessagesSent counts frames actually written to the transport, by msg_type.
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixgo_messages_sent_total",
			Help: "Total number of FIX frames written to the transport",
		},
		[]string{"session_key", "msg_type"},
	)

	// MessagesReceived counts frames accepted (seqnum advanced), by msg_type.
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixgo_messages_received_total",
			Help: "Total number of FIX frames accepted into recv_seq_num progression",
		},
		[]string{"session_key", "msg_type"},
	)

	// SequenceGaps counts inbound frames whose seqnum exceeded recv_seq_num.
	SequenceGaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixgo_sequence_gaps_total",
			Help: "Total number of inbound sequence gaps detected",
		},
		[]string{"session_key"},
	)

	// DuplicatesDropped counts inbound frames silently dropped as duplicates.
	DuplicatesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixgo_duplicates_dropped_total",
			Help: "Total number of duplicate inbound frames dropped",
		},
		[]string{"session_key"},
	)

	// ParseErrors counts malformed inbound frames that were dropped.
	ParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixgo_parse_errors_total",
			Help: "Total number of inbound frames dropped due to parse errors",
		},
		[]string{"session_key"},
	)

	// Reconnects counts connection losses seen by the session's
	// transport-loss path (read, write or heartbeat failure), each of
	// which schedules a reconnect. Failed connect retries and peer
	// Logouts are not counted.
	Reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixgo_reconnects_total",
			Help: "Total number of transport losses that scheduled a reconnect",
		},
		[]string{"session_key"},
	)

	// HandlerPanics counts caught panics from handler upcalls.
	HandlerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixgo_handler_panics_total",
			Help: "Total number of panics caught at the handler failure barrier",
		},
		[]string{"session_key", "upcall"},
	)

	// SessionPhase reports the current lifecycle phase as a gauge: on each phase change the new phase is set to 1 and the phase being left to 0.
	SessionPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fixgo_session_phase",
			Help: "Current lifecycle phase of a session (1=that phase is current)",
		},
		[]string{"session_key", "phase"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		MessagesReceived,
		SequenceGaps,
		DuplicatesDropped,
		ParseErrors,
		Reconnects,
		HandlerPanics,
		SessionPhase,
	)
}
