package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

// Repository manages transactional outbox message persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	// DeleteProcessedBefore prunes published messages; returns the number removed
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

func (e ErrMessageNotFound) Is(target error) bool {
	t, ok := target.(ErrMessageNotFound)
	if !ok {
		return false
	}
	return t.ID == 0 || e.ID == t.ID
}

// ErrDuplicateMessage indicates transaction uniqueness violation
type ErrDuplicateMessage struct {
	TransactionID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.TransactionID.String()
}

func (e ErrDuplicateMessage) Is(target error) bool {
	t, ok := target.(ErrDuplicateMessage)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || e.TransactionID == t.TransactionID
}
