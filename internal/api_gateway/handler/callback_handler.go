package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
)

// Plain text acknowledgements expected by the payment gateway
const (
	ackSuccess = "success"
	ackFail    = "fail"
)

// CallbackHandler receives asynchronous payment gateway notifications
type CallbackHandler struct {
	settlementService service.SettlementService
	logger            *slog.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(logger *slog.Logger, settlementService service.SettlementService) *CallbackHandler {
	return &CallbackHandler{
		settlementService: settlementService,
		logger:            logger,
	}
}

// Notify accepts GET query or form POST notifications. Anything but the
// success literal makes the gateway redeliver.
func (h *CallbackHandler) Notify(c *gin.Context) {
	params, err := notificationParams(c)
	if err != nil {
		h.logger.Warn("Unreadable notification", "error", err, "client_ip", c.ClientIP())
		c.String(http.StatusBadRequest, ackFail)
		return
	}

	outcome, err := h.settlementService.HandleNotification(c.Request.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid),
			errors.Is(err, service.ErrInvalidNotification),
			errors.Is(err, service.ErrAmountMismatch),
			errors.Is(err, service.ErrInvalidTransition):
			c.String(http.StatusBadRequest, ackFail)
		case errors.Is(err, service.ErrOrderNotFound):
			c.String(http.StatusNotFound, ackFail)
		default:
			c.String(http.StatusInternalServerError, ackFail)
		}
		return
	}

	h.logger.Debug("Notification acknowledged", "outcome", string(outcome), "out_trade_no", params["out_trade_no"])
	c.String(http.StatusOK, ackSuccess)
}

// notificationParams flattens query and form values, first value wins
func notificationParams(c *gin.Context) (map[string]string, error) {
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
	}

	values := c.Request.URL.Query()
	if c.Request.Method == http.MethodPost {
		values = c.Request.Form
	}

	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params, nil
}
