package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
)

type MockArchiveRepo struct {
	mock.Mock
}

func (m *MockArchiveRepo) Save(ctx context.Context, event *ledger.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockArchiveRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*ledger.Event, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Event), args.Error(1)
}

func (m *MockArchiveRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ledger.Event, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*ledger.Event), args.Error(1)
}

func (m *MockArchiveRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockArchiveService mocks the ArchiveService interface
type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) ArchiveEvent(ctx context.Context, event *ledger.Event) error {
	return m.Called(ctx, event).Error(0)
}
