package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarot-payment-ledger/internal/domain/order"
)

var orderColumnNames = []string{"id", "out_trade_no", "user_id", "item_id", "amount", "coins", "bonus", "pay_type", "status", "trade_no", "notify_data", "created_at", "updated_at", "paid_at"}

func sampleOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.NewOrder("TAROT17400000001234", uuid.New(), "2", decimal.RequireFromString("38.00"), 380, 20, order.PayTypeAlipay, time.Now())
	require.NoError(t, err)
	return o
}

func orderRow(o *order.Order) *pgxmock.Rows {
	return pgxmock.NewRows(orderColumnNames).AddRow(
		o.ID, o.OutTradeNo, o.UserID, o.ItemID, o.Amount, o.Coins, o.Bonus, o.PayType, o.Status,
		o.TradeNo, o.NotifyData, o.CreatedAt, o.UpdatedAt, o.PaidAt,
	)
}

func TestOrderRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: newTestLogger()}
	o := sampleOrder(t)
	query := regexp.QuoteMeta("INSERT INTO payment_orders")

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(o.ID, o.OutTradeNo, o.UserID, o.ItemID, o.Amount, o.Coins, o.Bonus, o.PayType, o.Status, o.CreatedAt, o.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, o))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate reference", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(o.ID, o.OutTradeNo, o.UserID, o.ItemID, o.Amount, o.Coins, o.Bonus, o.PayType, o.Status, o.CreatedAt, o.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payment_orders_out_trade_no_key"})

		err := repo.Create(ctx, o)
		assert.ErrorIs(t, err, order.ErrDuplicateOrder{OutTradeNo: o.OutTradeNo})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mock.ExpectExec(query).
			WithArgs(o.ID, o.OutTradeNo, o.UserID, o.ItemID, o.Amount, o.Coins, o.Bonus, o.PayType, o.Status, o.CreatedAt, o.UpdatedAt).
			WillReturnError(dbErr)

		err := repo.Create(ctx, o)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create order")
		assert.NotErrorIs(t, err, order.ErrDuplicateOrder{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetByOutTradeNo(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: newTestLogger()}
	o := sampleOrder(t)
	query := regexp.QuoteMeta("FROM payment_orders WHERE out_trade_no = $1")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(o.OutTradeNo).WillReturnRows(orderRow(o))

		got, err := repo.GetByOutTradeNo(ctx, o.OutTradeNo)
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
		assert.Equal(t, o.UserID, got.UserID)
		assert.True(t, o.Amount.Equal(got.Amount))
		assert.Equal(t, order.StatusPending, got.Status)
		assert.Nil(t, got.TradeNo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("TAROT0").WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByOutTradeNo(ctx, "TAROT0")
		assert.Nil(t, got)
		var notFound order.ErrOrderNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "TAROT0", notFound.OutTradeNo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: newTestLogger()}
	o := sampleOrder(t)
	query := regexp.QuoteMeta("WHERE out_trade_no = $1 FOR UPDATE")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(o.OutTradeNo).WillReturnRows(orderRow(o))

		got, err := repo.LockForUpdate(ctx, o.OutTradeNo)
		require.NoError(t, err)
		assert.Equal(t, o.OutTradeNo, got.OutTradeNo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("TAROT0").WillReturnError(pgx.ErrNoRows)

		_, err := repo.LockForUpdate(ctx, "TAROT0")
		assert.ErrorIs(t, err, order.ErrOrderNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("TAROT0").WillReturnError(errors.New("lock timeout"))

		_, err := repo.LockForUpdate(ctx, "TAROT0")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, order.ErrOrderNotFound{})
		assert.Contains(t, err.Error(), "failed to lock order for update")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_MarkPaid(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: newTestLogger()}
	o := sampleOrder(t)
	require.NoError(t, o.MarkPaid("2026031722001", json.RawMessage(`{"trade_status":"TRADE_SUCCESS"}`), time.Now()))
	query := regexp.QuoteMeta("WHERE out_trade_no = $6 AND status IN ('pending', 'expired')")

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(order.StatusPaid, o.TradeNo, o.NotifyData, o.PaidAt, o.UpdatedAt, o.OutTradeNo).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.MarkPaid(ctx, o))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already settled", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(order.StatusPaid, o.TradeNo, o.NotifyData, o.PaidAt, o.UpdatedAt, o.OutTradeNo).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkPaid(ctx, o)
		assert.ErrorIs(t, err, order.ErrInvalidTransition{OutTradeNo: o.OutTradeNo})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: newTestLogger()}
	first := sampleOrder(t)
	second := sampleOrder(t)
	second.UserID = first.UserID
	query := regexp.QuoteMeta("WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2")

	rows := pgxmock.NewRows(orderColumnNames).
		AddRow(first.ID, first.OutTradeNo, first.UserID, first.ItemID, first.Amount, first.Coins, first.Bonus, first.PayType, first.Status, first.TradeNo, first.NotifyData, first.CreatedAt, first.UpdatedAt, first.PaidAt).
		AddRow(second.ID, second.OutTradeNo, second.UserID, second.ItemID, second.Amount, second.Coins, second.Bonus, second.PayType, second.Status, second.TradeNo, second.NotifyData, second.CreatedAt, second.UpdatedAt, second.PaidAt)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(first.UserID, 10).WillReturnRows(rows)

		orders, err := repo.ListByUser(ctx, first.UserID, 10)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, first.ID, orders[0].ID)
		assert.Equal(t, second.ID, orders[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(first.UserID, 10).WillReturnRows(pgxmock.NewRows(orderColumnNames))

		orders, err := repo.ListByUser(ctx, first.UserID, 10)
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.NotNil(t, orders)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_ExpirePending(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: newTestLogger()}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * time.Minute)
	query := regexp.QuoteMeta("WHERE status = $3 AND created_at < $4")

	mock.ExpectExec(query).
		WithArgs(order.StatusExpired, now, order.StatusPending, cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.ExpirePending(ctx, cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_WithTx(t *testing.T) {
	repo := &OrderRepository{logger: newTestLogger()}

	txRepo := repo.WithTx(nil)

	orderRepo, ok := txRepo.(*OrderRepository)
	require.True(t, ok)
	assert.Nil(t, orderRepo.querier)
	assert.Equal(t, repo.logger, orderRepo.logger)
}
