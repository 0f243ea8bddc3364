package archive

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"liap-tui-server/internal/eventlog"
	"liap-tui-server/internal/metrics"
	"liap-tui-server/internal/room"
)

// Sink fans a completed room out to every configured backend. Any backend
// left nil is skipped, so a deployment can run with only a subset wired
// (e.g. Kafka in production, nothing in a dev environment). Sink implements
// room.CompletionHook.
type Sink struct {
	Kafka      *KafkaPublisher
	ClickHouse *ClickHouseAnalytics
	Postgres   *CompletedGameStore
	Timeout    time.Duration
}

var _ room.CompletionHook = (*Sink)(nil)

// OnGameOver is called once from inside the Machine's own goroutine when a
// room reaches GAME_OVER. It must not block the caller for long, so each
// backend write runs under its own bounded timeout and errors are logged
// rather than propagated — archival failures must never affect gameplay.
func (s *Sink) OnGameOver(summary room.RoomSummary, events []eventlog.Event) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	eventsJSON, err := json.Marshal(events)
	if err != nil {
		log.Printf("archive: failed to marshal events for room %s: %v", summary.RoomID, err)
		return
	}

	if s.Kafka != nil {
		msg := CompletedGameMessage{
			RoomID:       summary.RoomID,
			RoundsPlayed: summary.RoundsPlayed,
			FinalScores:  summary.FinalScores,
			Winner:       summary.Winner,
			EndedAt:      summary.EndedAt,
			Events:       eventsJSON,
		}
		if err := s.Kafka.Publish(ctx, msg); err != nil {
			metrics.RecordArchiveError("kafka")
			log.Printf("archive: kafka publish failed for room %s: %v", summary.RoomID, err)
		}
	}

	if s.ClickHouse != nil {
		if err := s.ClickHouse.RecordGameSummary(ctx, toSummaryRow(summary)); err != nil {
			metrics.RecordArchiveError("clickhouse")
			log.Printf("archive: clickhouse summary write failed for room %s: %v", summary.RoomID, err)
		}
		if rows := toRoundRows(summary, events); len(rows) > 0 {
			if err := s.ClickHouse.RecordRounds(ctx, rows); err != nil {
				metrics.RecordArchiveError("clickhouse")
				log.Printf("archive: clickhouse round write failed for room %s: %v", summary.RoomID, err)
			}
		}
	}

	if s.Postgres != nil {
		g := CompletedGame{
			RoomID:       summary.RoomID,
			RoundsPlayed: summary.RoundsPlayed,
			FinalScores:  summary.FinalScores,
			Winner:       summary.Winner,
			EndedAt:      summary.EndedAt,
			Events:       eventsJSON,
		}
		if err := s.Postgres.Store(ctx, g); err != nil {
			metrics.RecordArchiveError("postgres")
			log.Printf("archive: postgres store failed for room %s: %v", summary.RoomID, err)
		}
	}
}

func toSummaryRow(summary room.RoomSummary) GameSummaryRow {
	scores := make([]int32, len(summary.FinalScores))
	for i, v := range summary.FinalScores {
		scores[i] = int32(v)
	}
	return GameSummaryRow{
		RoomID:       summary.RoomID,
		RoundsPlayed: int32(summary.RoundsPlayed),
		Winner:       int32(summary.Winner),
		FinalScores:  scores,
		EndedAt:      summary.EndedAt,
	}
}

// toRoundRows extracts one RoundAnalyticsRow per seat per round_scored
// event found in the room's archived event stream. The payload is
// round-tripped through JSON since its concrete type lives in the room
// package and isn't exported for a direct type assertion.
func toRoundRows(summary room.RoomSummary, events []eventlog.Event) []RoundAnalyticsRow {
	var rows []RoundAnalyticsRow
	for _, ev := range events {
		if ev.Kind != eventlog.KindRoundScored {
			continue
		}
		body, err := json.Marshal(ev.Payload)
		if err != nil {
			continue
		}
		var decoded struct {
			Round  int `json:"round"`
			Scores []struct {
				Seat     int    `json:"seat"`
				PlayerID string `json:"player_id"`
				Declared int    `json:"declared"`
				Captured int    `json:"captured"`
				Delta    int    `json:"delta"`
			} `json:"scores"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			continue
		}
		for _, sc := range decoded.Scores {
			rows = append(rows, RoundAnalyticsRow{
				RoomID:      summary.RoomID,
				RoundNumber: int32(decoded.Round),
				Seat:        int32(sc.Seat),
				PlayerID:    sc.PlayerID,
				Declared:    int32(sc.Declared),
				Captured:    int32(sc.Captured),
				ScoreDelta:  int32(sc.Delta),
				Timestamp:   ev.Timestamp,
			})
		}
	}
	return rows
}
