package components

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/outbox"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) EnsureAccount(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepo) GetAccount(ctx context.Context, userID uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockLedgerRepo) LockAccount(ctx context.Context, userID uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockLedgerRepo) SaveAccount(ctx context.Context, account *ledger.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockLedgerRepo) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLedgerRepo) MarkBonusClaimed(ctx context.Context, userID uuid.UUID, day, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, day, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepo) WithTx(tx pgx.Tx) ledger.Repository {
	args := m.Called(tx)
	return args.Get(0).(ledger.Repository)
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

type MockOutboxManager struct {
	mock.Mock
}

func (m *MockOutboxManager) CreateOutboxEntry(ctx context.Context, tx pgx.Tx, txn *ledger.Transaction, account *ledger.Account) error {
	args := m.Called(ctx, tx, txn, account)
	return args.Error(0)
}
