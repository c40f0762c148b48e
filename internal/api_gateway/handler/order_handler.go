package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarot-payment-ledger/internal/api_gateway/middleware"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
	"github.com/tarot-payment-ledger/internal/domain/order"
)

// Error literals of the order creation contract
const (
	orderErrUnauthorized   = "Unauthorized"
	orderErrInvalidRequest = "InvalidRequest"
	orderErrConflict       = "OrderConflict"
	orderErrCreationFailed = "OrderCreationFailed"
)

// OrderHandler handles HTTP requests for payment orders
type OrderHandler struct {
	orderService service.OrderService
	catalog      *order.Catalog
	logger       *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(logger *slog.Logger, orderService service.OrderService, catalog *order.Catalog) *OrderHandler {
	if catalog == nil {
		catalog = order.DefaultCatalog()
	}
	return &OrderHandler{
		orderService: orderService,
		catalog:      catalog,
		logger:       logger,
	}
}

// Create starts a purchase and returns the signed gateway redirect
func (h *OrderHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondOrder(c, http.StatusUnauthorized, CreateOrderResponse{Error: orderErrUnauthorized})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid order request body", "error", err)
		RespondOrder(c, http.StatusBadRequest, CreateOrderResponse{Error: orderErrInvalidRequest})
		return
	}

	result, err := h.orderService.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		UserID:  userID,
		ItemID:  req.ItemID,
		Amount:  req.Amount,
		Coins:   req.Coins,
		Bonus:   req.Bonus,
		PayType: req.PayType,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			RespondOrder(c, http.StatusUnauthorized, CreateOrderResponse{Error: orderErrUnauthorized})
		case errors.Is(err, service.ErrInvalidRequest):
			RespondOrder(c, http.StatusBadRequest, CreateOrderResponse{Error: orderErrInvalidRequest})
		case errors.Is(err, service.ErrOrderConflict):
			RespondOrder(c, http.StatusConflict, CreateOrderResponse{Error: orderErrConflict})
		default:
			h.logger.Error("Failed to create order", "user_id", userID.String(), "error", err)
			RespondOrder(c, http.StatusInternalServerError, CreateOrderResponse{Error: orderErrCreationFailed})
		}
		return
	}

	RespondOrder(c, http.StatusOK, CreateOrderResponse{
		Success:    true,
		PayURL:     result.PayURL,
		OutTradeNo: result.OutTradeNo,
	})
}

// GetByOutTradeNo returns the status of one of the caller's orders
func (h *OrderHandler) GetByOutTradeNo(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c)
		return
	}

	outTradeNo := c.Param("outTradeNo")
	o, err := h.orderService.GetOrderStatus(c.Request.Context(), userID, outTradeNo)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			RespondNotFound(c, "Order not found")
			return
		}
		h.logger.Error("Failed to get order", "out_trade_no", outTradeNo, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapOrderToResponse(o))
}

// List returns the caller's most recent orders
func (h *OrderHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c)
		return
	}

	var params LimitParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid limit: "+err.Error())
		return
	}

	orders, err := h.orderService.ListRecentOrders(c.Request.Context(), userID, params.Limit)
	if err != nil {
		h.logger.Error("Failed to list orders", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	response := OrderListResponse{Orders: make([]OrderResponse, 0, len(orders))}
	for _, o := range orders {
		response.Orders = append(response.Orders, mapOrderToResponse(o))
	}
	RespondOK(c, response)
}

// Catalog lists the recharge tiers
func (h *OrderHandler) Catalog(c *gin.Context) {
	items := h.catalog.Items()
	response := make([]CatalogItemResponse, 0, len(items))
	for _, it := range items {
		response = append(response, CatalogItemResponse{
			ID:    it.ID,
			Price: it.Price.StringFixed(2),
			Coins: it.Coins,
			Bonus: it.Bonus,
		})
	}
	RespondOK(c, response)
}

func mapOrderToResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		OutTradeNo: o.OutTradeNo,
		ItemID:     o.ItemID,
		Amount:     o.MoneyString(),
		Coins:      o.Coins,
		Bonus:      o.Bonus,
		PayType:    string(o.PayType),
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
	if o.TradeNo != nil {
		resp.TradeNo = *o.TradeNo
	}
	if o.PaidAt != nil {
		resp.PaidAt = o.PaidAt.Format(time.RFC3339)
	}
	return resp
}
