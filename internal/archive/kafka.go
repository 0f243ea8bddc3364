// Package archive persists completed rooms to durable storage once a room
// reaches GAME_OVER: a Kafka topic for downstream consumers, a ClickHouse
// table for analytical queries, and Postgres for the authoritative
// completed-game record. All three are wired behind room.CompletionHook so
// the room Machine never imports a storage driver directly.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// KafkaPublisherConfig configures the completed-game Kafka producer.
type KafkaPublisherConfig struct {
	Brokers        []string
	Topic          string
	MaxRetries     int
	RetryBackoff   time.Duration
	FlushFrequency time.Duration
	FlushMessages  int
	RequiredAcks   sarama.RequiredAcks
}

// KafkaPublisher publishes completed-room records to Kafka.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string

	mu    sync.Mutex
	sent  int64
	fails int64
}

// CompletedGameMessage is the wire format published to the completed-games
// topic: a summary header plus the full ordered event stream for replay.
type CompletedGameMessage struct {
	RoomID       string          `json:"room_id"`
	RoundsPlayed int             `json:"rounds_played"`
	FinalScores  [4]int          `json:"final_scores"`
	Winner       int             `json:"winner"`
	EndedAt      time.Time       `json:"ended_at"`
	Events       json.RawMessage `json:"events"`
}

// NewKafkaPublisher dials the given brokers and configures a synchronous
// producer; idempotent writes are enabled only when RequiredAcks is
// sarama.WaitForAll.
func NewKafkaPublisher(cfg KafkaPublisherConfig) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Retry.Max = cfg.MaxRetries
	saramaConfig.Producer.Retry.Backoff = cfg.RetryBackoff
	saramaConfig.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaConfig.Producer.Flush.Messages = cfg.FlushMessages
	saramaConfig.Producer.RequiredAcks = cfg.RequiredAcks
	if cfg.RequiredAcks == sarama.WaitForAll {
		saramaConfig.Producer.Idempotent = true
		saramaConfig.Net.MaxOpenRequests = 1
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: cfg.Topic}, nil
}

// Publish sends msg keyed by room id so all records for a room land on the
// same partition, preserving per-room ordering for downstream consumers.
func (k *KafkaPublisher) Publish(ctx context.Context, msg CompletedGameMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(msg.RoomID),
		Value: sarama.ByteEncoder(body),
	})
	k.mu.Lock()
	if err != nil {
		k.fails++
	} else {
		k.sent++
	}
	k.mu.Unlock()
	return err
}

// Stats reports how many messages this publisher has sent and failed to send.
func (k *KafkaPublisher) Stats() (sent, failed int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sent, k.fails
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
