package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	_ "github.com/lib/pq"

	"liap-tui-server/internal/archive"
	"liap-tui-server/internal/bot"
	"liap-tui-server/internal/config"
	"liap-tui-server/internal/gatewayhttp"
	"liap-tui-server/internal/roommgr"
)

func main() {
	cfg := config.FromEnv()

	hook := buildArchiveSink(cfg)

	bots := bot.New(cfg)
	mgr := roommgr.New(cfg, bots, hook)
	defer mgr.Stop()

	gw := gatewayhttp.New(mgr, cfg)
	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: gw.Engine}

	go func() {
		log.Printf("game server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("game server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// buildArchiveSink wires whichever archival backends are configured via
// environment variables, leaving unconfigured ones nil — archive.Sink skips
// nil backends, so a dev environment with none of these set runs with no
// archival at all.
func buildArchiveSink(cfg config.Config) *archive.Sink {
	sink := &archive.Sink{Timeout: 5 * time.Second}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		pub, err := archive.NewKafkaPublisher(archive.KafkaPublisherConfig{
			Brokers:        []string{brokers},
			Topic:          envOr("KAFKA_COMPLETED_GAMES_TOPIC", "liap-tui.completed-games"),
			MaxRetries:     3,
			RetryBackoff:   100 * time.Millisecond,
			FlushFrequency: 500 * time.Millisecond,
			FlushMessages:  10,
			RequiredAcks:   sarama.WaitForLocal,
		})
		if err != nil {
			log.Printf("archive: kafka publisher disabled: %v", err)
		} else {
			sink.Kafka = pub
		}
	}

	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ch, err := archive.NewClickHouseAnalytics(ctx, archive.ClickHouseConfig{
			Host:     host,
			Port:     envIntOr("CLICKHOUSE_PORT", 9000),
			Database: envOr("CLICKHOUSE_DATABASE", "liap_tui"),
			Username: envOr("CLICKHOUSE_USERNAME", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		})
		if err != nil {
			log.Printf("archive: clickhouse analytics disabled: %v", err)
		} else {
			if err := ch.CreateTables(ctx); err != nil {
				log.Printf("archive: clickhouse table creation failed: %v", err)
			}
			sink.ClickHouse = ch
		}
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Printf("archive: postgres completed-game store disabled: %v", err)
		} else {
			store := archive.NewCompletedGameStore(db)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := store.CreateTable(ctx); err != nil {
				log.Printf("archive: postgres table creation failed: %v", err)
			}
			cancel()
			sink.Postgres = store
		}
	}

	return sink
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
