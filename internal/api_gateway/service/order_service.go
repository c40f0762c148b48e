package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/metrics"
	"github.com/tarot-payment-ledger/internal/platform/epay"
	"github.com/tarot-payment-ledger/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultRecentOrders = 10
	maxRecentOrders     = 50
)

// CreateOrderInput is a purchase request from an authenticated user
type CreateOrderInput struct {
	UserID  uuid.UUID
	ItemID  string
	Amount  decimal.Decimal
	Coins   int64
	Bonus   int64
	PayType string
}

// CreateOrderResult carries the redirect for the gateway cashier page
type CreateOrderResult struct {
	PayURL     string
	OutTradeNo string
}

// OrderPolicy holds order creation settings
type OrderPolicy struct {
	OutTradeNoPrefix   string
	RequireCatalogItem bool
	RecentLimit        int
}

// OrderServiceImpl implements the OrderService interface
type OrderServiceImpl struct {
	orderRepo order.Repository
	gateway   PayURLBuilder
	catalog   *order.Catalog
	policy    OrderPolicy
	now       func() time.Time
	logger    *slog.Logger
}

// NewOrderService creates a new order service. orderRepo must be backed by
// the service-role connection; user credentials never write orders.
func NewOrderService(logger *slog.Logger, orderRepo order.Repository, gateway PayURLBuilder, catalog *order.Catalog, policy OrderPolicy) *OrderServiceImpl {
	if catalog == nil {
		catalog = order.DefaultCatalog()
	}
	if policy.RecentLimit <= 0 {
		policy.RecentLimit = defaultRecentOrders
	}
	return &OrderServiceImpl{
		orderRepo: orderRepo,
		gateway:   gateway,
		catalog:   catalog,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
}

var _ OrderService = (*OrderServiceImpl)(nil)

// CreateOrder validates the purchase, signs the gateway redirect and persists
// a pending order. The redirect is built first so a signing failure leaves no row.
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, input CreateOrderInput) (result *CreateOrderResult, err error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "CreateOrder")
	defer func() { tracing.EndSpan(span, err) }()

	if input.UserID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	payType, err := order.ParsePayType(input.PayType)
	if err != nil {
		metrics.RecordOrderCreated(input.PayType, "invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := s.catalog.Match(input.ItemID, input.Amount, input.Coins, input.Bonus, s.policy.RequireCatalogItem); err != nil {
		metrics.RecordOrderCreated(string(payType), "invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	now := s.now()
	o, err := order.NewOrder(
		order.NewOutTradeNo(s.policy.OutTradeNoPrefix, now),
		input.UserID,
		input.ItemID,
		input.Amount,
		input.Coins,
		input.Bonus,
		payType,
		now,
	)
	if err != nil {
		metrics.RecordOrderCreated(string(payType), "invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	span.SetAttributes(
		attribute.String("order.out_trade_no", o.OutTradeNo),
		attribute.String("order.pay_type", string(o.PayType)),
	)

	payURL, _, err := s.gateway.BuildPayURL(epay.PayRequest{
		OutTradeNo: o.OutTradeNo,
		PayType:    string(o.PayType),
		Amount:     o.Amount,
		Coins:      o.Coins,
	})
	if err != nil {
		s.logger.Error("Failed to build pay URL", "out_trade_no", o.OutTradeNo, "error", err)
		metrics.RecordOrderCreated(string(payType), "failed")
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	if err := s.orderRepo.Create(ctx, o); err != nil {
		if errors.Is(err, order.ErrDuplicateOrder{}) {
			s.logger.Warn("Order reference collision", "out_trade_no", o.OutTradeNo)
			metrics.RecordOrderCreated(string(payType), "conflict")
			return nil, fmt.Errorf("%w: %w", ErrOrderConflict, err)
		}
		s.logger.Error("Failed to persist order", "out_trade_no", o.OutTradeNo, "user_id", o.UserID.String(), "error", err)
		metrics.RecordOrderCreated(string(payType), "failed")
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	s.logger.Info("Order created",
		"out_trade_no", o.OutTradeNo,
		"user_id", o.UserID.String(),
		"amount", o.MoneyString(),
		"coins", o.Coins,
		"bonus", o.Bonus,
		"pay_type", string(o.PayType),
	)
	metrics.RecordOrderCreated(string(payType), "created")

	return &CreateOrderResult{PayURL: payURL, OutTradeNo: o.OutTradeNo}, nil
}

// GetOrderStatus returns the order when it belongs to userID
func (s *OrderServiceImpl) GetOrderStatus(ctx context.Context, userID uuid.UUID, outTradeNo string) (*order.Order, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	o, err := s.orderRepo.GetByOutTradeNo(ctx, outTradeNo)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to get order", "out_trade_no", outTradeNo, "error", err)
		return nil, err
	}
	if o.UserID != userID {
		s.logger.Warn("Order requested by another user", "out_trade_no", outTradeNo, "user_id", userID.String())
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ListRecentOrders returns the newest orders of userID
func (s *OrderServiceImpl) ListRecentOrders(ctx context.Context, userID uuid.UUID, limit int) ([]*order.Order, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if limit <= 0 {
		limit = s.policy.RecentLimit
	}
	if limit > maxRecentOrders {
		limit = maxRecentOrders
	}
	return s.orderRepo.ListByUser(ctx, userID, limit)
}
