package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
)

const rechargeReferenceIndex = "uq_ledger_transactions_recharge_reference"

// LedgerRepository implements ledger.Repository for PostgreSQL
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *LedgerRepository) EnsureAccount(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	query := `
		INSERT INTO user_balances (user_id, balance, total_recharge, created_at, updated_at)
		VALUES ($1, 0, 0, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query, userID, now)
	if err != nil {
		r.logger.Error("Failed to ensure ledger account", "user_id", userID.String(), "error", err)
		return false, fmt.Errorf("failed to ensure ledger account: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *LedgerRepository) GetAccount(ctx context.Context, userID uuid.UUID) (*ledger.Account, error) {
	query := `
		SELECT user_id, balance, total_recharge, last_bonus_date, created_at, updated_at
		FROM user_balances
		WHERE user_id = $1
	`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound{UserID: userID}
		}
		r.logger.Error("Failed to get ledger account", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger account: %w", err)
	}

	return acc, nil
}

// LockAccount reads the projection row with FOR UPDATE; concurrent writers
// for the same user queue behind the lock
func (r *LedgerRepository) LockAccount(ctx context.Context, userID uuid.UUID) (*ledger.Account, error) {
	query := `
		SELECT user_id, balance, total_recharge, last_bonus_date, created_at, updated_at
		FROM user_balances
		WHERE user_id = $1
		FOR UPDATE
	`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound{UserID: userID}
		}
		r.logger.Error("Failed to lock ledger account", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock ledger account: %w", err)
	}

	return acc, nil
}

func (r *LedgerRepository) SaveAccount(ctx context.Context, acc *ledger.Account) error {
	query := `
		UPDATE user_balances
		SET balance = $1, total_recharge = $2, updated_at = $3
		WHERE user_id = $4
	`

	result, err := r.querier.Exec(ctx, query, acc.Balance, acc.TotalRecharge, acc.UpdatedAt, acc.UserID)
	if err != nil {
		r.logger.Error("Failed to save ledger account", "user_id", acc.UserID.String(), "error", err)
		return fmt.Errorf("failed to save ledger account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound{UserID: acc.UserID}
	}

	return nil
}

func (r *LedgerRepository) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (id, user_id, type, amount, recharge_value, balance_after, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.Amount,
		tx.RechargeValue,
		tx.BalanceAfter,
		tx.Description,
		tx.ReferenceID,
		tx.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == persistence.UniqueViolation && pgErr.ConstraintName == rechargeReferenceIndex {
			ref := ""
			if tx.ReferenceID != nil {
				ref = *tx.ReferenceID
			}
			return ledger.ErrDuplicateRecharge{ReferenceID: ref}
		}
		r.logger.Error("Failed to append ledger transaction",
			"user_id", tx.UserID.String(),
			"type", string(tx.Type),
			"error", err,
		)
		return fmt.Errorf("failed to append ledger transaction: %w", err)
	}

	return nil
}

// MarkBonusClaimed is the check-and-set for the daily bonus: it only updates
// when the stored date is older than day
func (r *LedgerRepository) MarkBonusClaimed(ctx context.Context, userID uuid.UUID, day, now time.Time) (bool, error) {
	query := `
		UPDATE user_balances
		SET last_bonus_date = $1, updated_at = $2
		WHERE user_id = $3 AND (last_bonus_date IS NULL OR last_bonus_date < $1)
	`

	result, err := r.querier.Exec(ctx, query, day, now.UTC(), userID)
	if err != nil {
		r.logger.Error("Failed to mark daily bonus claimed", "user_id", userID.String(), "error", err)
		return false, fmt.Errorf("failed to mark daily bonus claimed: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var acc ledger.Account
	err := row.Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.TotalRecharge,
		&acc.LastBonusDate,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
