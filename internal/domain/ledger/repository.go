package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages the transaction log and balance projection in PostgreSQL
type Repository interface {
	// EnsureAccount creates an empty projection row; created is false if it already existed
	EnsureAccount(ctx context.Context, userID uuid.UUID, now time.Time) (created bool, err error)
	GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error)

	// LockAccount acquires a row lock on the projection for a read-check-write cycle
	LockAccount(ctx context.Context, userID uuid.UUID) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
	AppendTransaction(ctx context.Context, tx *Transaction) error

	// MarkBonusClaimed sets last_bonus_date to day unless it is already day or later.
	// claimed is false when the bonus was already taken.
	MarkBonusClaimed(ctx context.Context, userID uuid.UUID, day, now time.Time) (claimed bool, err error)
	WithTx(tx pgx.Tx) Repository
}

// ArchiveRepository stores ledger events for history queries
type ArchiveRepository interface {
	Save(ctx context.Context, event *Event) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Event, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Event, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ErrAccountNotFound indicates a user without a balance projection
type ErrAccountNotFound struct {
	UserID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "ledger account not found: " + e.UserID.String()
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	// If the target UserID is empty, consider it a match for any ErrAccountNotFound
	if t.UserID == uuid.Nil {
		return true
	}
	return e.UserID == t.UserID
}

// ErrDuplicateRecharge indicates a second recharge for the same order reference
type ErrDuplicateRecharge struct {
	ReferenceID string
}

func (e ErrDuplicateRecharge) Error() string {
	return "recharge already recorded for reference: " + e.ReferenceID
}

func (e ErrDuplicateRecharge) Is(target error) bool {
	t, ok := target.(ErrDuplicateRecharge)
	if !ok {
		return false
	}
	return t.ReferenceID == "" || e.ReferenceID == t.ReferenceID
}

// ErrEventNotFound indicates a missing archived event
type ErrEventNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrEventNotFound) Error() string {
	return "ledger event not found: " + e.TransactionID.String()
}

func (e ErrEventNotFound) Is(target error) bool {
	t, ok := target.(ErrEventNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || e.TransactionID == t.TransactionID
}

// ErrDuplicateEvent indicates an event that was already archived
type ErrDuplicateEvent struct {
	TransactionID uuid.UUID
}

func (e ErrDuplicateEvent) Error() string {
	return "duplicate ledger event: " + e.TransactionID.String()
}

func (e ErrDuplicateEvent) Is(target error) bool {
	t, ok := target.(ErrDuplicateEvent)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || e.TransactionID == t.TransactionID
}
