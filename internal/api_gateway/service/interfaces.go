package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/platform/epay"
)

// OrderService defines the interface for payment order operations
type OrderService interface {
	// CreateOrder persists a pending order and returns the signed gateway redirect
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)

	// GetOrderStatus returns an order owned by userID
	// Returns ErrOrderNotFound for missing orders and orders of other users
	GetOrderStatus(ctx context.Context, userID uuid.UUID, outTradeNo string) (*order.Order, error)

	ListRecentOrders(ctx context.Context, userID uuid.UUID, limit int) ([]*order.Order, error)
}

// SettlementService handles asynchronous gateway notifications
type SettlementService interface {
	HandleNotification(ctx context.Context, params map[string]string) (Outcome, error)
}

// LedgerService defines the wallet operations
type LedgerService interface {
	Credit(ctx context.Context, userID uuid.UUID, amount, rechargeValue int64, description, referenceID string) (*ledger.Transaction, error)

	// Consume returns ledger.ErrInsufficientFunds when the balance is short
	Consume(ctx context.Context, userID uuid.UUID, amount int64, description string) (*ledger.Transaction, error)

	ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (ClaimResult, *ledger.Transaction, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int64, description, referenceID string) (*ledger.Transaction, error)
	GetBalanceSnapshot(ctx context.Context, userID uuid.UUID) (*ledger.Snapshot, error)

	// ListTransactions pages through the archived ledger events, newest first
	ListTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*ledger.Event, int64, error)
}

// BalanceManager applies postings to a locked wallet inside a database transaction
type BalanceManager interface {
	// OpenAccount locks the wallet row, creating it with the initial grant on first use
	OpenAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*ledger.Account, error)

	// Post appends the posting and updates the wallet projection
	Post(ctx context.Context, tx pgx.Tx, posting ledger.Posting) (*ledger.Transaction, *ledger.Account, error)
}

// OutboxManager queues a ledger event in the same transaction as its posting
type OutboxManager interface {
	CreateOutboxEntry(ctx context.Context, tx pgx.Tx, txn *ledger.Transaction, account *ledger.Account) error
}

// PayURLBuilder builds the signed redirect toward the payment gateway
type PayURLBuilder interface {
	BuildPayURL(req epay.PayRequest) (string, map[string]string, error)
}

// NotificationVerifier checks callback signatures and merchant identity
type NotificationVerifier interface {
	VerifyParams(params map[string]string) bool
	MerchantID() string
}

var (
	_ PayURLBuilder        = (*epay.Gateway)(nil)
	_ NotificationVerifier = (*epay.Gateway)(nil)
)
