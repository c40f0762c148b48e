package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines order persistence operations
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByOutTradeNo(ctx context.Context, outTradeNo string) (*Order, error)

	// LockForUpdate acquires a row lock for settlement
	LockForUpdate(ctx context.Context, outTradeNo string) (*Order, error)

	// MarkPaid persists the paid fields of order if it is still pending or expired
	MarkPaid(ctx context.Context, order *Order) error

	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Order, error)

	// ExpirePending moves pending orders created before olderThan to expired
	ExpirePending(ctx context.Context, olderThan, now time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrOrderNotFound indicates a missing order
type ErrOrderNotFound struct {
	OutTradeNo string
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.OutTradeNo
}

// Is matches any ErrOrderNotFound when the target carries no reference
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	if t.OutTradeNo == "" {
		return true
	}
	return e.OutTradeNo == t.OutTradeNo
}

// ErrDuplicateOrder indicates an order reference collision
type ErrDuplicateOrder struct {
	OutTradeNo string
}

func (e ErrDuplicateOrder) Error() string {
	return "duplicate order reference: " + e.OutTradeNo
}

func (e ErrDuplicateOrder) Is(target error) bool {
	t, ok := target.(ErrDuplicateOrder)
	if !ok {
		return false
	}
	return t.OutTradeNo == "" || e.OutTradeNo == t.OutTradeNo
}

// ErrInvalidTransition indicates a lifecycle move the order does not allow
type ErrInvalidTransition struct {
	OutTradeNo string
	From       Status
	To         Status
}

func (e ErrInvalidTransition) Error() string {
	return "invalid order transition " + string(e.From) + " -> " + string(e.To) + ": " + e.OutTradeNo
}

func (e ErrInvalidTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidTransition)
	if !ok {
		return false
	}
	return t.OutTradeNo == "" || e.OutTradeNo == t.OutTradeNo
}
