package archive

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseConfig holds ClickHouse connection configuration for the
// completed-round analytics sink.
type ClickHouseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	Secure       bool
	MaxOpenConns int
	MaxIdleConns int
}

// ClickHouseAnalytics writes per-round outcome rows for analytical queries
// (declaration accuracy, average rounds to win, and so on). Redeals are
// not recorded.
type ClickHouseAnalytics struct {
	db clickhouse.Conn
}

// RoundAnalyticsRow is one row of the round_analytics table: one row per
// seat per round of a completed room.
type RoundAnalyticsRow struct {
	RoomID      string    `ch:"room_id"`
	RoundNumber int32     `ch:"round_number"`
	Seat        int32     `ch:"seat"`
	PlayerID    string    `ch:"player_id"`
	Declared    int32     `ch:"declared"`
	Captured    int32     `ch:"captured"`
	ScoreDelta  int32     `ch:"score_delta"`
	Timestamp   time.Time `ch:"timestamp"`
}

// GameSummaryRow is one row of the game_summary table: one row per completed
// room.
type GameSummaryRow struct {
	RoomID       string    `ch:"room_id"`
	RoundsPlayed int32     `ch:"rounds_played"`
	Winner       int32     `ch:"winner"`
	FinalScores  []int32   `ch:"final_scores"`
	EndedAt      time.Time `ch:"ended_at"`
}

// NewClickHouseAnalytics opens and pings a ClickHouse connection.
func NewClickHouseAnalytics(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseAnalytics, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		TLS: &tls.Config{InsecureSkipVerify: cfg.Secure},
	})
	if err != nil {
		return nil, fmt.Errorf("archive: failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("archive: failed to ping clickhouse: %w", err)
	}
	return &ClickHouseAnalytics{db: conn}, nil
}

// CreateTables creates the analytics tables if they don't already exist.
func (c *ClickHouseAnalytics) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS round_analytics (
			room_id String,
			round_number Int32,
			seat Int32,
			player_id String,
			declared Int32,
			captured Int32,
			score_delta Int32,
			timestamp DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (room_id, round_number, seat)`,

		`CREATE TABLE IF NOT EXISTS game_summary (
			room_id String,
			rounds_played Int32,
			winner Int32,
			final_scores Array(Int32),
			ended_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(ended_at)
		ORDER BY room_id`,
	}
	for _, q := range queries {
		if err := c.db.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// RecordRounds batch-inserts per-round rows for a completed game.
func (c *ClickHouseAnalytics) RecordRounds(ctx context.Context, rows []RoundAnalyticsRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.db.PrepareBatch(ctx, "INSERT INTO round_analytics")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.AppendStruct(&r); err != nil {
			return err
		}
	}
	return batch.Send()
}

// RecordGameSummary inserts the one-row summary for a completed game.
func (c *ClickHouseAnalytics) RecordGameSummary(ctx context.Context, row GameSummaryRow) error {
	batch, err := c.db.PrepareBatch(ctx, "INSERT INTO game_summary")
	if err != nil {
		return err
	}
	if err := batch.AppendStruct(&row); err != nil {
		return err
	}
	return batch.Send()
}

func (c *ClickHouseAnalytics) Close() error {
	return c.db.Close()
}

func (c *ClickHouseAnalytics) Ping(ctx context.Context) error {
	return c.db.Ping(ctx)
}
