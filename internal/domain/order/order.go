// Package order models payment orders and their status lifecycle.
package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment order
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
	StatusExpired Status = "expired"
)

// PayType selects the wallet provider used at the gateway
type PayType string

const (
	PayTypeAlipay PayType = "alipay"
	PayTypeWxpay  PayType = "wxpay"
)

// MaxCoins caps coins + bonus on a single order
const MaxCoins int64 = 1_000_000_000

// Common errors
var (
	ErrMissingUser       = errors.New("order must belong to a user")
	ErrMissingOutTradeNo = errors.New("order reference cannot be empty")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAmountPrecision   = errors.New("amount must have at most 2 decimal places")
	ErrInvalidCoins      = errors.New("coins must be positive")
	ErrInvalidBonus      = errors.New("bonus must not be negative")
	ErrTooManyCoins      = errors.New("coins plus bonus exceeds the per-order limit")
	ErrInvalidPayType    = errors.New("pay type must be alipay or wxpay")
)

// transitions lists the allowed next states. expired -> paid admits a late but
// legitimate gateway notification; paid and failed are terminal.
var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusFailed, StatusExpired},
	StatusExpired: {StatusPaid},
}

// Order is a single purchase attempt shared with the payment gateway
type Order struct {
	ID         uuid.UUID       `json:"id"`
	OutTradeNo string          `json:"out_trade_no"`
	UserID     uuid.UUID       `json:"user_id"`
	ItemID     string          `json:"item_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Coins      int64           `json:"coins"`
	Bonus      int64           `json:"bonus"`
	PayType    PayType         `json:"pay_type"`
	Status     Status          `json:"status"`
	TradeNo    *string         `json:"trade_no,omitempty"`
	NotifyData json.RawMessage `json:"notify_data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
}

// ParsePayType validates a channel selector; an empty value selects alipay
func ParsePayType(s string) (PayType, error) {
	switch PayType(s) {
	case "":
		return PayTypeAlipay, nil
	case PayTypeAlipay, PayTypeWxpay:
		return PayType(s), nil
	default:
		return "", ErrInvalidPayType
	}
}

// NewOrder validates purchase parameters and returns a pending order
func NewOrder(outTradeNo string, userID uuid.UUID, itemID string, amount decimal.Decimal, coins, bonus int64, payType PayType, now time.Time) (*Order, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUser
	}
	if outTradeNo == "" {
		return nil, ErrMissingOutTradeNo
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, ErrAmountPrecision
	}
	if coins <= 0 {
		return nil, ErrInvalidCoins
	}
	if bonus < 0 {
		return nil, ErrInvalidBonus
	}
	if coins > MaxCoins || bonus > MaxCoins-coins {
		return nil, ErrTooManyCoins
	}
	if payType != PayTypeAlipay && payType != PayTypeWxpay {
		return nil, ErrInvalidPayType
	}

	now = now.UTC()
	return &Order{
		ID:         uuid.New(),
		OutTradeNo: outTradeNo,
		UserID:     userID,
		ItemID:     itemID,
		Amount:     amount.Round(2),
		Coins:      coins,
		Bonus:      bonus,
		PayType:    payType,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NewOutTradeNo returns prefix + unix millis + a 4 digit random suffix
func NewOutTradeNo(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d%04d", prefix, now.UnixMilli(), rand.IntN(10000))
}

// TotalCoins is what the wallet receives on settlement
func (o *Order) TotalCoins() int64 {
	return o.Coins + o.Bonus
}

// RechargeValue is the amount added to total_recharge on settlement
func (o *Order) RechargeValue(bonusCounts bool) int64 {
	if bonusCounts {
		return o.Coins + o.Bonus
	}
	return o.Coins
}

// MoneyString formats the amount the way the gateway expects it
func (o *Order) MoneyString() string {
	return o.Amount.StringFixed(2)
}

// CanTransitionTo reports whether the order may move to next
func (o *Order) CanTransitionTo(next Status) bool {
	for _, s := range transitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// MarkPaid records the gateway settlement on the order
func (o *Order) MarkPaid(tradeNo string, notifyData json.RawMessage, at time.Time) error {
	if err := o.transition(StatusPaid, at); err != nil {
		return err
	}
	paidAt := at.UTC()
	o.TradeNo = &tradeNo
	o.NotifyData = notifyData
	o.PaidAt = &paidAt
	return nil
}

// MarkFailed records an actively detected payment failure
func (o *Order) MarkFailed(at time.Time) error {
	return o.transition(StatusFailed, at)
}

// MarkExpired records that checkout was abandoned
func (o *Order) MarkExpired(at time.Time) error {
	return o.transition(StatusExpired, at)
}

func (o *Order) transition(next Status, at time.Time) error {
	if !o.CanTransitionTo(next) {
		return ErrInvalidTransition{OutTradeNo: o.OutTradeNo, From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = at.UTC()
	return nil
}
