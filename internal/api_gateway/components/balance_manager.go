package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

const initialGrantDescription = "Welcome grant"

// BalanceManagerImpl implements the BalanceManager interface
type BalanceManagerImpl struct {
	ledgerRepo     ledger.Repository
	outboxManager  service.OutboxManager
	initialBalance int64
	now            func() time.Time
	logger         *slog.Logger
}

// NewBalanceManager creates a BalanceManagerImpl granting initialBalance coins to new wallets
func NewBalanceManager(ledgerRepo ledger.Repository, outboxManager service.OutboxManager, initialBalance int64, logger *slog.Logger) *BalanceManagerImpl {
	return &BalanceManagerImpl{
		ledgerRepo:     ledgerRepo,
		outboxManager:  outboxManager,
		initialBalance: initialBalance,
		now:            time.Now,
		logger:         logger,
	}
}

var _ service.BalanceManager = (*BalanceManagerImpl)(nil)

// OpenAccount makes sure the wallet exists and holds its row lock for the rest of tx.
// A wallet created here receives the initial grant in the same transaction.
func (m *BalanceManagerImpl) OpenAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*ledger.Account, error) {
	logger := m.loggerFor(ctx)
	repo := m.ledgerRepo.WithTx(tx)

	created, err := repo.EnsureAccount(ctx, userID, m.now())
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet %s: %w", userID.String(), err)
	}

	account, err := repo.LockAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound{}) {
			logger.Warn("Wallet vanished between ensure and lock", "user_id", userID.String())
			return nil, err
		}
		logger.Error("Failed to lock wallet", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet %s: %w", userID.String(), err)
	}

	if created && m.initialBalance > 0 {
		grant := ledger.Posting{
			UserID:      userID,
			Type:        ledger.TypeInitial,
			Amount:      m.initialBalance,
			Description: initialGrantDescription,
		}
		if _, err := m.apply(ctx, tx, repo, account, grant); err != nil {
			return nil, err
		}
		logger.Info("Wallet opened with initial grant", "user_id", userID.String(), "amount", m.initialBalance)
	}

	return account, nil
}

// Post locks the wallet and applies posting to it
func (m *BalanceManagerImpl) Post(ctx context.Context, tx pgx.Tx, posting ledger.Posting) (*ledger.Transaction, *ledger.Account, error) {
	if err := posting.Validate(); err != nil {
		return nil, nil, err
	}

	account, err := m.OpenAccount(ctx, tx, posting.UserID)
	if err != nil {
		return nil, nil, err
	}

	txn, err := m.apply(ctx, tx, m.ledgerRepo.WithTx(tx), account, posting)
	if err != nil {
		return nil, nil, err
	}
	return txn, account, nil
}

// apply mutates the locked account, appends the transaction, saves the
// projection and queues the outbox event
func (m *BalanceManagerImpl) apply(ctx context.Context, tx pgx.Tx, repo ledger.Repository, account *ledger.Account, posting ledger.Posting) (*ledger.Transaction, error) {
	logger := m.loggerFor(ctx)

	txn, err := account.Apply(posting, m.now())
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			logger.Info("Insufficient funds", "user_id", posting.UserID.String(), "balance", account.Balance, "amount", posting.Amount)
		}
		return nil, err
	}

	if err := repo.AppendTransaction(ctx, txn); err != nil {
		if errors.Is(err, ledger.ErrDuplicateRecharge{}) {
			logger.Warn("Recharge already recorded", "user_id", posting.UserID.String(), "error", err)
			return nil, err
		}
		return nil, fmt.Errorf("failed to append %s transaction: %w", posting.Type, err)
	}

	if err := repo.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save wallet %s: %w", posting.UserID.String(), err)
	}

	if err := m.outboxManager.CreateOutboxEntry(ctx, tx, txn, account); err != nil {
		return nil, err
	}

	logger.Info("Ledger transaction appended",
		"user_id", posting.UserID.String(),
		"transaction_id", txn.ID.String(),
		"type", string(txn.Type),
		"amount", txn.Amount,
		"balance_after", txn.BalanceAfter,
	)
	return txn, nil
}

func (m *BalanceManagerImpl) loggerFor(ctx context.Context) *slog.Logger {
	if correlationID := shared.CorrelationIDFromContext(ctx); correlationID != "" {
		return m.logger.With("correlation_id", correlationID)
	}
	return m.logger
}
