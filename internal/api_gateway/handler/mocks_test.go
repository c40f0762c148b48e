package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tarot-payment-ledger/internal/api_gateway/middleware"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/order"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, input service.CreateOrderInput) (*service.CreateOrderResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreateOrderResult), args.Error(1)
}

func (m *MockOrderService) GetOrderStatus(ctx context.Context, userID uuid.UUID, outTradeNo string) (*order.Order, error) {
	args := m.Called(ctx, userID, outTradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListRecentOrders(ctx context.Context, userID uuid.UUID, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) HandleNotification(ctx context.Context, params map[string]string) (service.Outcome, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(service.Outcome), args.Error(1)
}

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Credit(ctx context.Context, userID uuid.UUID, amount, rechargeValue int64, description, referenceID string) (*ledger.Transaction, error) {
	args := m.Called(ctx, userID, amount, rechargeValue, description, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerService) Consume(ctx context.Context, userID uuid.UUID, amount int64, description string) (*ledger.Transaction, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerService) ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (service.ClaimResult, *ledger.Transaction, error) {
	args := m.Called(ctx, userID)
	var txn *ledger.Transaction
	if args.Get(1) != nil {
		txn = args.Get(1).(*ledger.Transaction)
	}
	return args.Get(0).(service.ClaimResult), txn, args.Error(2)
}

func (m *MockLedgerService) Refund(ctx context.Context, userID uuid.UUID, amount int64, description, referenceID string) (*ledger.Transaction, error) {
	args := m.Called(ctx, userID, amount, description, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerService) GetBalanceSnapshot(ctx context.Context, userID uuid.UUID) (*ledger.Snapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Snapshot), args.Error(1)
}

func (m *MockLedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*ledger.Event, int64, error) {
	args := m.Called(ctx, userID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*ledger.Event), args.Get(1).(int64), args.Error(2)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// asUser stands in for the bearer middleware
func asUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}
