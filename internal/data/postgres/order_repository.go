package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
)

const orderColumns = `id, out_trade_no, user_id, item_id, amount, coins, bonus, pay_type, status, trade_no, notify_data, created_at, updated_at, paid_at`

// OrderRepository implements order.Repository for PostgreSQL
type OrderRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order repository
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Repository {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *OrderRepository) WithTx(tx pgx.Tx) order.Repository {
	return &OrderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a new pending order
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO payment_orders (id, out_trade_no, user_id, item_id, amount, coins, bonus, pay_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		o.ID,
		o.OutTradeNo,
		o.UserID,
		o.ItemID,
		o.Amount,
		o.Coins,
		o.Bonus,
		o.PayType,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return order.ErrDuplicateOrder{OutTradeNo: o.OutTradeNo}
		}
		r.logger.Error("Failed to create order", "out_trade_no", o.OutTradeNo, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByOutTradeNo fetches an order by its merchant reference
func (r *OrderRepository) GetByOutTradeNo(ctx context.Context, outTradeNo string) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE out_trade_no = $1`

	o, err := scanOrder(r.querier.QueryRow(ctx, query, outTradeNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OutTradeNo: outTradeNo}
		}
		r.logger.Error("Failed to get order", "out_trade_no", outTradeNo, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return o, nil
}

// LockForUpdate fetches the order and holds a row lock until the surrounding
// transaction ends. Must be called on a repository bound with WithTx.
func (r *OrderRepository) LockForUpdate(ctx context.Context, outTradeNo string) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE out_trade_no = $1 FOR UPDATE`

	o, err := scanOrder(r.querier.QueryRow(ctx, query, outTradeNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OutTradeNo: outTradeNo}
		}
		r.logger.Error("Failed to lock order for update", "out_trade_no", outTradeNo, "error", err)
		return nil, fmt.Errorf("failed to lock order for update: %w", err)
	}

	return o, nil
}

// MarkPaid writes the settlement fields. The update is conditional on the
// stored status so a concurrent settlement cannot be overwritten.
func (r *OrderRepository) MarkPaid(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE payment_orders
		SET status = $1, trade_no = $2, notify_data = $3, paid_at = $4, updated_at = $5
		WHERE out_trade_no = $6 AND status IN ('pending', 'expired')
	`

	result, err := r.querier.Exec(ctx, query,
		order.StatusPaid,
		o.TradeNo,
		o.NotifyData,
		o.PaidAt,
		o.UpdatedAt,
		o.OutTradeNo,
	)
	if err != nil {
		r.logger.Error("Failed to mark order paid", "out_trade_no", o.OutTradeNo, "error", err)
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return order.ErrInvalidTransition{OutTradeNo: o.OutTradeNo, To: order.StatusPaid}
	}

	return nil
}

// ListByUser returns the user's most recent orders, newest first
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.querier.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("Failed to list orders", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*order.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan order", "error", err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over orders: %w", err)
	}

	return orders, nil
}

// ExpirePending moves stale pending orders to expired
func (r *OrderRepository) ExpirePending(ctx context.Context, olderThan, now time.Time) (int64, error) {
	query := `
		UPDATE payment_orders
		SET status = $1, updated_at = $2
		WHERE status = $3 AND created_at < $4
	`

	result, err := r.querier.Exec(ctx, query, order.StatusExpired, now.UTC(), order.StatusPending, olderThan)
	if err != nil {
		r.logger.Error("Failed to expire pending orders", "error", err)
		return 0, fmt.Errorf("failed to expire pending orders: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID,
		&o.OutTradeNo,
		&o.UserID,
		&o.ItemID,
		&o.Amount,
		&o.Coins,
		&o.Bonus,
		&o.PayType,
		&o.Status,
		&o.TradeNo,
		&o.NotifyData,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
