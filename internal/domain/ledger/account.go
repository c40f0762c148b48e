package ledger

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Account is the materialized balance projection of a user's transactions
type Account struct {
	UserID        uuid.UUID  `json:"user_id"`
	Balance       int64      `json:"balance"`
	TotalRecharge int64      `json:"total_recharge"`
	LastBonusDate *time.Time `json:"last_bonus_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Snapshot is the read model returned to clients
type Snapshot struct {
	UserID             uuid.UUID `json:"user_id"`
	Balance            int64     `json:"balance"`
	TotalRecharge      int64     `json:"total_recharge"`
	UnlockThreshold    int64     `json:"unlock_threshold"`
	Unlocked           bool      `json:"unlocked"`
	CanClaimDailyBonus bool      `json:"can_claim_daily_bonus"`
}

// Apply applies p to the projection and returns the transaction to append.
// The account is left untouched when an error is returned.
func (a *Account) Apply(p Posting, now time.Time) (*Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	signed := p.SignedAmount()
	if signed > 0 && a.Balance > math.MaxInt64-signed {
		return nil, ErrBalanceOverflow
	}
	if p.Type == TypeRecharge && a.TotalRecharge > math.MaxInt64-p.RechargeValue {
		return nil, ErrBalanceOverflow
	}
	if a.Balance+signed < 0 {
		return nil, ErrInsufficientFunds
	}

	a.Balance += signed
	if p.Type == TypeRecharge {
		a.TotalRecharge += p.RechargeValue
	}
	a.UpdatedAt = now.UTC()

	return &Transaction{
		ID:            uuid.New(),
		UserID:        a.UserID,
		Type:          p.Type,
		Amount:        signed,
		RechargeValue: p.RechargeValue,
		BalanceAfter:  a.Balance,
		Description:   p.Description,
		ReferenceID:   p.ReferenceID,
		CreatedAt:     now.UTC(),
	}, nil
}

// BonusClaimedOn reports whether the daily bonus was already claimed on day
func (a *Account) BonusClaimedOn(day time.Time) bool {
	if a.LastBonusDate == nil {
		return false
	}
	return !DateOf(*a.LastBonusDate, time.UTC).Before(day)
}

// Snapshot builds the client read model
func (a *Account) Snapshot(unlockThreshold int64, today time.Time) Snapshot {
	return Snapshot{
		UserID:             a.UserID,
		Balance:            a.Balance,
		TotalRecharge:      a.TotalRecharge,
		UnlockThreshold:    unlockThreshold,
		Unlocked:           a.TotalRecharge >= unlockThreshold,
		CanClaimDailyBonus: !a.BonusClaimedOn(today),
	}
}

// DateOf returns the calendar date of t in loc, as midnight UTC
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
