package outbox_poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tarot-payment-ledger/internal/domain/outbox"
	"github.com/tarot-payment-ledger/internal/domain/shared"
	"github.com/tarot-payment-ledger/internal/platform/messaging/producers"
)

// EventPublisher relays one outbox message to the ledger event topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, message *outbox.Message) error
}

// ErrUnpublishable marks a message that can never be published
type ErrUnpublishable struct {
	OutboxID int64
	Err      error
}

func (e ErrUnpublishable) Error() string {
	return fmt.Sprintf("outbox message %d cannot be published: %v", e.OutboxID, e.Err)
}

func (e ErrUnpublishable) Unwrap() error { return e.Err }

func (e ErrUnpublishable) Is(target error) bool {
	t, ok := target.(ErrUnpublishable)
	if !ok {
		return false
	}
	return t.OutboxID == 0 || t.OutboxID == e.OutboxID
}

// KafkaEventPublisher implements EventPublisher
type KafkaEventPublisher struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewKafkaEventPublisher creates a new publisher
func NewKafkaEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishEvent sends the stored payload keyed by user id, so one user's events
// stay ordered within a partition, then marks the message processed
func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, message *outbox.Message) error {
	event, err := message.LedgerEvent()
	if err != nil {
		p.logger.Error("Failed to decode ledger event from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to mark undecodable outbox message", "outbox_id", message.ID, "update_error", updateErr)
		}
		return ErrUnpublishable{OutboxID: message.ID, Err: err}
	}

	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	if err := p.producer.Publish(ctx, message.UserID.String(), json.RawMessage(message.Payload)); err != nil {
		return fmt.Errorf("failed to publish ledger event %s: %w", message.TransactionID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to mark outbox message as PROCESSED",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		// The event is out; a second publish is absorbed by the idempotent archive
		return fmt.Errorf("ledger event %s published, but failed to mark outbox %d as PROCESSED: %w", message.TransactionID, message.ID, err)
	}

	logger.Debug("Ledger event published", "outbox_id", message.ID, "transaction_id", message.TransactionID, "type", string(event.Type))
	return nil
}
