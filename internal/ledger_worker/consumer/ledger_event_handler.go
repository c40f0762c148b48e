package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/ledger_worker/service"
	"github.com/tarot-payment-ledger/internal/platform/messaging/producers"
)

// LedgerEventHandler archives ledger events consumed from Kafka
type LedgerEventHandler struct {
	archiveService service.ArchiveService
	producer       producers.DeadLetterPublisher
	logger         *slog.Logger
}

func NewLedgerEventHandler(
	logger *slog.Logger,
	archiveService service.ArchiveService,
	producer producers.DeadLetterPublisher,
) *LedgerEventHandler {
	return &LedgerEventHandler{
		archiveService: archiveService,
		producer:       producer,
		logger:         logger,
	}
}

// HandleMessage processes one Kafka message. A nil return commits the offset.
func (h *LedgerEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event ledger.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("Failed to unmarshal ledger event from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		return h.deadLetter(ctx, key, value, fmt.Errorf("failed to unmarshal message value: %w", err))
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Debug("Received ledger event",
		"transaction_id", event.TransactionID.String(),
		"user_id", event.UserID.String(),
		"type", string(event.Type),
	)

	if err := h.archiveService.ArchiveEvent(ctx, &event); err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			logger.Error("Ledger event cannot be archived", "error", err, "message_key", string(key))
			return h.deadLetter(ctx, key, value, err)
		}
		logger.Error("Failed to archive ledger event",
			"transaction_id", event.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("archiving ledger event %s failed: %w", event.TransactionID.String(), err)
	}

	return nil
}

// deadLetter parks an unprocessable message. Without a DLQ the original error is
// returned and the message stays uncommitted.
func (h *LedgerEventHandler) deadLetter(ctx context.Context, key, value []byte, cause error) error {
	if h.producer == nil {
		return cause
	}
	if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, cause.Error()); dlqErr != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", string(key),
		)
		return cause
	}
	h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", cause.Error())
	return nil
}
