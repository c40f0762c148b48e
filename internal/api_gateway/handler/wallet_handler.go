package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarot-payment-ledger/internal/api_gateway/middleware"
	"github.com/tarot-payment-ledger/internal/api_gateway/service"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
)

// WalletHandler handles HTTP requests for the coin wallet
type WalletHandler struct {
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, ledgerService service.LedgerService) *WalletHandler {
	return &WalletHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// Balance returns the caller's wallet snapshot
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c)
		return
	}

	snap, err := h.ledgerService.GetBalanceSnapshot(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get balance", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, BalanceResponse{
		Balance:            snap.Balance,
		TotalRecharge:      snap.TotalRecharge,
		UnlockThreshold:    snap.UnlockThreshold,
		Unlocked:           snap.Unlocked,
		CanClaimDailyBonus: snap.CanClaimDailyBonus,
	})
}

// Consume spends coins when the balance covers them
func (h *WalletHandler) Consume(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c)
		return
	}

	var req ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	txn, err := h.ledgerService.Consume(c.Request.Context(), userID, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			RespondInsufficientFunds(c)
		case errors.Is(err, ledger.ErrInvalidAmount):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Error("Failed to consume coins", "user_id", userID.String(), "amount", req.Amount, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapTransactionToResponse(txn))
}

// ClaimDailyBonus credits today's bonus once
func (h *WalletHandler) ClaimDailyBonus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c)
		return
	}

	result, txn, err := h.ledgerService.ClaimDailyBonus(c.Request.Context(), userID)
	if err != nil {
		RespondInternalError(c)
		return
	}

	response := DailyBonusResponse{Result: string(result)}
	if txn != nil {
		tr := mapTransactionToResponse(txn)
		response.Transaction = &tr
	}
	RespondOK(c, response)
}

// Transactions pages through the caller's archived ledger history
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c)
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	events, total, err := h.ledgerService.ListTransactions(c.Request.Context(), userID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list transactions", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	response := TransactionListResponse{Transactions: make([]TransactionResponse, 0, len(events))}
	for _, ev := range events {
		response.Transactions = append(response.Transactions, mapEventToResponse(ev))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, params.Page, params.PerPage, total)
}

func mapTransactionToResponse(txn *ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		TransactionID: txn.ID.String(),
		Type:          string(txn.Type),
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		Description:   txn.Description,
		CreatedAt:     txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.ReferenceID != nil {
		resp.ReferenceID = *txn.ReferenceID
	}
	return resp
}

func mapEventToResponse(ev *ledger.Event) TransactionResponse {
	return TransactionResponse{
		TransactionID: ev.TransactionID.String(),
		Type:          string(ev.Type),
		Amount:        ev.Amount,
		BalanceAfter:  ev.BalanceAfter,
		Description:   ev.Description,
		ReferenceID:   ev.ReferenceID,
		CreatedAt:     ev.OccurredAt.Format(time.RFC3339),
	}
}
