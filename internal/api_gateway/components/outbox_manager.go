package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/outbox"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, logger *slog.Logger) service.OutboxManager {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateOutboxEntry queues the ledger event describing txn for the relay
func (m *OutboxManagerImpl) CreateOutboxEntry(ctx context.Context, tx pgx.Tx, txn *ledger.Transaction, account *ledger.Account) error {
	correlationID := shared.CorrelationIDFromContext(ctx)
	logger := m.logger
	if correlationID != "" {
		logger = m.logger.With("correlation_id", correlationID)
	}

	outboxMessage, err := outbox.NewMessage(ledger.NewEvent(txn, account, correlationID))
	if err != nil {
		logger.Error("Failed to create new outbox message (marshal payload)",
			"transaction_id", txn.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message payload for tx %s: %w", txn.ID.String(), err)
	}

	if err = m.outboxRepo.WithTx(tx).Create(ctx, outboxMessage); err != nil {
		logger.Error("Failed to create outbox message",
			"transaction_id", txn.ID.String(),
			"user_id", txn.UserID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for tx %s: %w", txn.ID.String(), err)
	}
	logger.Debug("Outbox message created",
		"transaction_id", txn.ID.String(),
		"outbox_id", outboxMessage.ID,
	)

	return nil
}
