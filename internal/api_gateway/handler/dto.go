package handler

import "github.com/shopspring/decimal"

// CreateOrderRequest represents a purchase request. Amount accepts a JSON
// number or string.
type CreateOrderRequest struct {
	ItemID  string          `json:"itemId"`
	Amount  decimal.Decimal `json:"amount"`
	Coins   int64           `json:"coins"`
	Bonus   int64           `json:"bonus"`
	PayType string          `json:"payType"`
}

// CreateOrderResponse is the order creation contract consumed by the web client
type CreateOrderResponse struct {
	Success    bool   `json:"success"`
	PayURL     string `json:"payUrl,omitempty"`
	OutTradeNo string `json:"outTradeNo,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	OutTradeNo string `json:"out_trade_no"`
	ItemID     string `json:"item_id,omitempty"`
	Amount     string `json:"amount"`
	Coins      int64  `json:"coins"`
	Bonus      int64  `json:"bonus"`
	PayType    string `json:"pay_type"`
	Status     string `json:"status"`
	TradeNo    string `json:"trade_no,omitempty"`
	CreatedAt  string `json:"created_at"`
	PaidAt     string `json:"paid_at,omitempty"`
}

// OrderListResponse represents a list of orders in API responses
type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
}

// CatalogItemResponse represents a recharge tier
type CatalogItemResponse struct {
	ID    string `json:"id"`
	Price string `json:"price"`
	Coins int64  `json:"coins"`
	Bonus int64  `json:"bonus"`
}

// BalanceResponse represents the wallet snapshot
type BalanceResponse struct {
	Balance            int64 `json:"balance"`
	TotalRecharge      int64 `json:"total_recharge"`
	UnlockThreshold    int64 `json:"unlock_threshold"`
	Unlocked           bool  `json:"unlocked"`
	CanClaimDailyBonus bool  `json:"can_claim_daily_bonus"`
}

// ConsumeRequest represents a request to spend coins
type ConsumeRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=200"`
}

// TransactionResponse represents a ledger transaction in API responses
type TransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balance_after"`
	Description   string `json:"description"`
	ReferenceID   string `json:"reference_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// DailyBonusResponse reports the outcome of a claim
type DailyBonusResponse struct {
	Result      string               `json:"result"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// TransactionListResponse represents a list of transactions in API responses
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// LimitParams bounds simple list endpoints
type LimitParams struct {
	Limit int `form:"limit,default=10" binding:"min=1,max=50"`
}
