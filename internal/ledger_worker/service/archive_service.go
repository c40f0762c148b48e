package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/metrics"
	"github.com/tarot-payment-ledger/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrInvalidEvent marks an event that can never be archived
var ErrInvalidEvent = errors.New("invalid ledger event")

type ArchiveServiceImpl struct {
	archive ledger.ArchiveRepository
	logger  *slog.Logger
}

func NewArchiveService(archive ledger.ArchiveRepository, logger *slog.Logger) ArchiveService {
	return &ArchiveServiceImpl{
		archive: archive,
		logger:  logger,
	}
}

// ArchiveEvent writes event once. Redelivered events are acknowledged without
// a second document.
func (s *ArchiveServiceImpl) ArchiveEvent(ctx context.Context, event *ledger.Event) (err error) {
	ctx, span := otel.Tracer("ledger-worker").Start(ctx, "ArchiveService.ArchiveEvent")
	defer func() { tracing.EndSpan(span, err) }()

	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	if event.TransactionID == uuid.Nil || event.UserID == uuid.Nil {
		metrics.RecordLedgerEventArchived("invalid")
		return fmt.Errorf("%w: transaction and user ids are required", ErrInvalidEvent)
	}
	if !event.Type.Valid() {
		metrics.RecordLedgerEventArchived("invalid")
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
	}
	span.SetAttributes(
		attribute.String("transaction_id", event.TransactionID.String()),
		attribute.String("type", string(event.Type)),
	)

	if err := s.archive.Save(ctx, event); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEvent{}) {
			logger.Info("Ledger event already archived, skipping", "transaction_id", event.TransactionID.String())
			metrics.RecordLedgerEventArchived("duplicate")
			return nil
		}
		metrics.RecordLedgerEventArchived("error")
		return fmt.Errorf("failed to archive ledger event %s: %w", event.TransactionID, err)
	}

	logger.Info("Ledger event archived",
		"transaction_id", event.TransactionID.String(),
		"user_id", event.UserID.String(),
		"type", string(event.Type),
		"amount", event.Amount,
	)
	metrics.RecordLedgerEventArchived("archived")
	return nil
}
