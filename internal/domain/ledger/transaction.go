// Package ledger models the coin wallet: an append-only transaction log and the
// per-user balance projection kept consistent with it.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies ledger transactions
type TransactionType string

const (
	TypeInitial    TransactionType = "initial"
	TypeDailyBonus TransactionType = "daily_bonus"
	TypeRecharge   TransactionType = "recharge"
	TypeConsume    TransactionType = "consume"
	TypeRefund     TransactionType = "refund"
)

// Common errors
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBalanceOverflow        = errors.New("credit would overflow the account totals")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidRechargeValue   = errors.New("recharge value only applies to non-negative recharge transactions")
	ErrMissingUser            = errors.New("transaction must belong to a user")
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TypeInitial, TypeDailyBonus, TypeRecharge, TypeConsume, TypeRefund:
		return true
	}
	return false
}

// IsDebit reports whether transactions of this type reduce the balance
func (t TransactionType) IsDebit() bool {
	return t == TypeConsume
}

// Transaction is an immutable ledger row. Amount is signed.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	RechargeValue int64           `json:"recharge_value"`
	BalanceAfter  int64           `json:"balance_after"`
	Description   string          `json:"description"`
	ReferenceID   *string         `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Posting is a requested balance change. Amount is the unsigned magnitude;
// the sign follows from Type.
type Posting struct {
	UserID        uuid.UUID
	Type          TransactionType
	Amount        int64
	RechargeValue int64
	Description   string
	ReferenceID   *string
}

// Validate checks the posting before it touches an account
func (p Posting) Validate() error {
	if p.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if !p.Type.Valid() {
		return ErrInvalidTransactionType
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.RechargeValue < 0 || (p.Type != TypeRecharge && p.RechargeValue != 0) {
		return ErrInvalidRechargeValue
	}
	return nil
}

// SignedAmount returns the amount as it is stored on the transaction
func (p Posting) SignedAmount() int64 {
	if p.Type.IsDebit() {
		return -p.Amount
	}
	return p.Amount
}

// Reference returns a pointer suitable for Posting.ReferenceID, nil for ""
func Reference(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
