// Package metrics defines the Prometheus instrumentation for the game
// server: room lifecycle, gameplay throughput, bot activity, and gateway
// connection health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Room lifecycle metrics
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liap_tui_rooms_active",
		Help: "Number of rooms currently open",
	})

	RoomsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liap_tui_rooms_created_total",
		Help: "Total number of rooms created",
	})

	RoomsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_rooms_closed_total",
		Help: "Total number of rooms closed",
	}, []string{"reason"})

	RoomDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liap_tui_room_duration_seconds",
		Help:    "Wall-clock lifetime of a room from creation to game over",
		Buckets: []float64{30, 60, 180, 300, 600, 1200, 1800, 3600},
	})

	// Gameplay metrics
	ActionsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_actions_processed_total",
		Help: "Total number of actions processed by a room's actor loop",
	}, []string{"kind"})

	ActionQueueDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liap_tui_action_queue_depth",
		Help:    "Depth of a room's inbound action queue at dispatch time",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})

	InvariantViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_invariant_violations_total",
		Help: "Total number of invariant violations caught during dispatch",
	}, []string{"reason"})

	RedealsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_redeals_total",
		Help: "Total number of weak-hand redeals granted",
	}, []string{"round"})

	RoundsPlayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liap_tui_rounds_played_total",
		Help: "Total number of rounds completed across all rooms",
	})

	GamesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liap_tui_games_completed_total",
		Help: "Total number of games that reached GAME_OVER",
	})

	// Bot metrics
	BotDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_bot_decisions_total",
		Help: "Total number of decisions made by bot-controlled seats",
	}, []string{"action"})

	BotDecisionLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liap_tui_bot_decision_latency_seconds",
		Help:    "Delay between a bot becoming eligible to act and acting",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// Gateway / connection metrics
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liap_tui_connections_active",
		Help: "Number of currently open gateway connections",
	})

	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liap_tui_connections_total",
		Help: "Total number of gateway connections accepted",
	})

	MessagesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_messages_rejected_total",
		Help: "Total number of inbound messages rejected",
	}, []string{"reason"})

	RetransmitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liap_tui_retransmits_total",
		Help: "Total number of events retransmitted after a missing ack",
	})

	ResyncRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_resync_requests_total",
		Help: "Total number of resync requests handled",
	}, []string{"outcome"})

	// Archive metrics
	ArchiveWriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liap_tui_archive_write_errors_total",
		Help: "Total number of errors writing a completed game to an archival backend",
	}, []string{"backend"})
)

// RecordAction increments the per-kind action counter and observes the
// queue depth seen at dispatch time.
func RecordAction(kind string, queueDepth int) {
	ActionsProcessedTotal.WithLabelValues(kind).Inc()
	ActionQueueDepth.Observe(float64(queueDepth))
}

// RecordInvariantViolation increments the invariant-violation counter for
// the given reason.
func RecordInvariantViolation(reason string) {
	InvariantViolationsTotal.WithLabelValues(reason).Inc()
}

// RecordRoomClosed increments the per-reason room closure counter and
// observes the room's total lifetime.
func RecordRoomClosed(reason string, lifetimeSeconds float64) {
	RoomsClosedTotal.WithLabelValues(reason).Inc()
	RoomDurationSeconds.Observe(lifetimeSeconds)
}

// RecordBotDecision increments the per-action bot decision counter and
// observes the decision latency.
func RecordBotDecision(action string, latencySeconds float64) {
	BotDecisionsTotal.WithLabelValues(action).Inc()
	BotDecisionLatencySeconds.WithLabelValues(action).Observe(latencySeconds)
}

// RecordArchiveError increments the archive-write-error counter for the
// named backend.
func RecordArchiveError(backend string) {
	ArchiveWriteErrorsTotal.WithLabelValues(backend).Inc()
}
