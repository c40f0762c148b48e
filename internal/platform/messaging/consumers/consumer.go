package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

// headerCorrelationID mirrors producers.HeaderCorrelationID
const headerCorrelationID = "correlation_id"

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error
	Close() error
}

// messageReader is the subset of *kafka.Reader the consumer relies on
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements Consumer using Kafka
type KafkaConsumer struct {
	reader       messageReader
	logger       *slog.Logger
	fetchBackoff time.Duration
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset != kafka.FirstOffset && startOffset != kafka.LastOffset {
		startOffset = kafka.FirstOffset
	}

	return &KafkaConsumer{
		logger:       logger,
		fetchBackoff: time.Second,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.LedgerEventTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
	}
}

// Subscribe starts a background loop that hands each message to handler.
// Offsets are committed only after the handler succeeds.
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic",
		"topic", topic,
		"group_id", groupID,
	)

	go c.run(ctx, topic, groupID, handler)

	return nil
}

func (c *KafkaConsumer) run(ctx context.Context, topic string, groupID string, handler MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Context canceled, stopping consumer",
				"topic", topic,
				"group_id", groupID,
			)
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message from Kafka",
				"topic", topic,
				"group_id", groupID,
				"error", err,
			)
			time.Sleep(c.fetchBackoff)
			continue
		}

		c.logger.Debug("Received message from Kafka",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)

		msgCtx := ctx
		if correlationID := headerValue(msg, headerCorrelationID); correlationID != "" {
			msgCtx = shared.WithCorrelationID(ctx, correlationID)
		}

		if err := handler(msgCtx, msg.Key, msg.Value); err != nil {
			// Uncommitted messages are redelivered after a rebalance or restart
			c.logger.Error("Failed to process message, will not commit offset",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit message after successful processing",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
			continue
		}

		c.logger.Debug("Message committed successfully",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
