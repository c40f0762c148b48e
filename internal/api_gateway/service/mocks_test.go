package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/tarot-payment-ledger/internal/domain/audit"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/platform/epay"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByOutTradeNo(ctx context.Context, outTradeNo string) (*order.Order, error) {
	args := m.Called(ctx, outTradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) LockForUpdate(ctx context.Context, outTradeNo string) (*order.Order, error) {
	args := m.Called(ctx, outTradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ExpirePending(ctx context.Context, olderThan, now time.Time) (int64, error) {
	args := m.Called(ctx, olderThan, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) WithTx(tx pgx.Tx) order.Repository {
	return m
}

type MockPayURLBuilder struct {
	mock.Mock
}

func (m *MockPayURLBuilder) BuildPayURL(req epay.PayRequest) (string, map[string]string, error) {
	args := m.Called(req)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(map[string]string), args.Error(2)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyParams(params map[string]string) bool {
	args := m.Called(params)
	return args.Bool(0)
}

func (m *MockVerifier) MerchantID() string {
	args := m.Called()
	return args.String(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Record(ctx context.Context, record *audit.CallbackRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type MockBalanceManager struct {
	mock.Mock
}

func (m *MockBalanceManager) OpenAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockBalanceManager) Post(ctx context.Context, tx pgx.Tx, posting ledger.Posting) (*ledger.Transaction, *ledger.Account, error) {
	args := m.Called(ctx, tx, posting)
	var txn *ledger.Transaction
	var acc *ledger.Account
	if args.Get(0) != nil {
		txn = args.Get(0).(*ledger.Transaction)
	}
	if args.Get(1) != nil {
		acc = args.Get(1).(*ledger.Account)
	}
	return txn, acc, args.Error(2)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) EnsureAccount(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) GetAccount(ctx context.Context, userID uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockLedgerRepository) LockAccount(ctx context.Context, userID uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockLedgerRepository) SaveAccount(ctx context.Context, account *ledger.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockLedgerRepository) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLedgerRepository) MarkBonusClaimed(ctx context.Context, userID uuid.UUID, day, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, day, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return m
}

type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) Save(ctx context.Context, event *ledger.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockArchiveRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*ledger.Event, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Event), args.Error(1)
}

func (m *MockArchiveRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ledger.Event, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Event), args.Error(1)
}

func (m *MockArchiveRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// passthroughTx runs fn without a real transaction
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	p.calls++
	return fn(nil)
}
