package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// CompletedGame is the authoritative record of a finished room, including
// its full event stream for later resync/replay or dispute review.
type CompletedGame struct {
	RoomID       string
	RoundsPlayed int
	FinalScores  [4]int
	Winner       int
	EndedAt      time.Time
	Events       json.RawMessage
}

// CompletedGameStore persists CompletedGame records to Postgres.
type CompletedGameStore struct {
	db *sql.DB
}

// NewCompletedGameStore wraps an already-opened *sql.DB (driver "postgres").
func NewCompletedGameStore(db *sql.DB) *CompletedGameStore {
	return &CompletedGameStore{db: db}
}

// CreateTable creates the completed_games table if it doesn't already exist.
func (s *CompletedGameStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS completed_games (
			room_id TEXT PRIMARY KEY,
			rounds_played INT NOT NULL,
			final_scores INT[] NOT NULL,
			winner INT NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			events JSONB NOT NULL
		)
	`)
	return err
}

// Store inserts a completed game record, or replaces it if the room id was
// already archived (a completion hook retry after a transient failure).
func (s *CompletedGameStore) Store(ctx context.Context, g CompletedGame) error {
	scores := make([]int64, len(g.FinalScores))
	for i, v := range g.FinalScores {
		scores[i] = int64(v)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completed_games (room_id, rounds_played, final_scores, winner, ended_at, events)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id) DO UPDATE SET
			rounds_played = EXCLUDED.rounds_played,
			final_scores = EXCLUDED.final_scores,
			winner = EXCLUDED.winner,
			ended_at = EXCLUDED.ended_at,
			events = EXCLUDED.events
	`, g.RoomID, g.RoundsPlayed, pq.Array(scores), g.Winner, g.EndedAt, g.Events)
	return err
}

// Get retrieves a completed game by room id.
func (s *CompletedGameStore) Get(ctx context.Context, roomID string) (*CompletedGame, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT room_id, rounds_played, final_scores, winner, ended_at, events
		FROM completed_games WHERE room_id = $1
	`, roomID)

	var g CompletedGame
	var scores []int64
	if err := row.Scan(&g.RoomID, &g.RoundsPlayed, pq.Array(&scores), &g.Winner, &g.EndedAt, &g.Events); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	for i := 0; i < len(g.FinalScores) && i < len(scores); i++ {
		g.FinalScores[i] = int(scores[i])
	}
	return &g, nil
}
