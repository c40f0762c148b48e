package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

// ErrDLQDisabled is returned when no dead letter topic is configured
var ErrDLQDisabled = errors.New("DLQ producer not initialized")

// DeadLetter is the record written to the DLQ topic. OriginalValue is kept as a
// string because the value that failed may not be valid JSON.
type DeadLetter struct {
	SourceTopic   string    `json:"source_topic,omitempty"`
	OriginalKey   string    `json:"original_key"`
	OriginalValue string    `json:"original_value"`
	Reason        string    `json:"dlq_reason"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	FailedAt      time.Time `json:"failed_at"`
}

type DLQProducer struct {
	logger      *slog.Logger
	writer      KafkaWriter
	dlqTopic    string
	sourceTopic string
	now         func() time.Time
}

// NewDLQProducer returns a nil producer when cfg.DLQTopic is empty (DLQ disabled)
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured. DLQProducer will not be initialized.")
		return nil, nil
	}

	if err := dialAndEnsureTopic(cfg.Brokers, cfg.DLQTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s exists: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &DLQProducer{
		logger:      logger,
		writer:      writer,
		dlqTopic:    cfg.DLQTopic,
		sourceTopic: cfg.LedgerEventTopic,
		now:         time.Now,
	}, nil
}

// PublishToDLQ parks a message that can never be processed, keyed like the original
func (p *DLQProducer) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	letter := DeadLetter{
		SourceTopic:   p.sourceTopic,
		OriginalKey:   key,
		OriginalValue: string(originalMessageValue),
		Reason:        reason,
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		FailedAt:      now().UTC(),
	}

	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header{{Key: "dlq-reason", Value: []byte(reason)}},
	}
	if letter.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(letter.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message to DLQ",
			"topic", p.dlqTopic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Warn("Published message to DLQ",
		"topic", p.dlqTopic,
		"key", key,
		"reason", reason,
		"correlation_id", letter.CorrelationID,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ producer", "topic", p.dlqTopic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
