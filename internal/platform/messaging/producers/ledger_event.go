package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/tarot-payment-ledger/internal/config"
)

// HeaderCorrelationID carries the originating request id on Kafka messages
const HeaderCorrelationID = "correlation_id"

// LedgerEventProducer writes ledger events relayed from the outbox. Messages
// are keyed by user so one user's events stay ordered within a partition.
type LedgerEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewLedgerEventProducer creates the producer and ensures the topic exists
func NewLedgerEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*LedgerEventProducer, error) {
	if cfg.LedgerEventTopic == "" {
		return nil, fmt.Errorf("kafka ledger event topic is not configured")
	}

	if err := dialAndEnsureTopic(cfg.Brokers, cfg.LedgerEventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger event topic %s exists: %w", cfg.LedgerEventTopic, err)
	}

	// Synchronous writes: the outbox row is only marked processed after the
	// broker acknowledged the message
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.LedgerEventTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &LedgerEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.LedgerEventTopic,
	}, nil
}

// Publish marshals value as JSON and writes it under key. A json.RawMessage
// is written as is.
func (p *LedgerEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}
	if correlationID := correlationIDOf(value); correlationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(correlationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish ledger event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish ledger event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published ledger event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *LedgerEventProducer) Close() error {
	p.logger.Info("Closing ledger event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}

// correlationIDOf extracts a correlation_id field from a JSON document
func correlationIDOf(value interface{}) string {
	raw, ok := value.(json.RawMessage)
	if !ok {
		return ""
	}
	var envelope struct {
		CorrelationID string `json:"correlation_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.CorrelationID
}
