package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Event announces an appended transaction. It travels through the outbox and
// Kafka and is archived in MongoDB for the history API.
type Event struct {
	TransactionID uuid.UUID       `json:"transaction_id" bson:"transaction_id"`
	UserID        uuid.UUID       `json:"user_id" bson:"user_id"`
	Type          TransactionType `json:"type" bson:"type"`
	Amount        int64           `json:"amount" bson:"amount"`
	RechargeValue int64           `json:"recharge_value" bson:"recharge_value"`
	BalanceAfter  int64           `json:"balance_after" bson:"balance_after"`
	TotalRecharge int64           `json:"total_recharge" bson:"total_recharge"`
	Description   string          `json:"description" bson:"description"`
	ReferenceID   string          `json:"reference_id,omitempty" bson:"reference_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at" bson:"occurred_at"`
	ArchivedAt    *time.Time      `json:"archived_at,omitempty" bson:"archived_at,omitempty"`
}

// NewEvent builds the event for tx as applied to acc
func NewEvent(tx *Transaction, acc *Account, correlationID string) *Event {
	ev := &Event{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		RechargeValue: tx.RechargeValue,
		BalanceAfter:  tx.BalanceAfter,
		TotalRecharge: acc.TotalRecharge,
		Description:   tx.Description,
		CorrelationID: correlationID,
		OccurredAt:    tx.CreatedAt,
	}
	if tx.ReferenceID != nil {
		ev.ReferenceID = *tx.ReferenceID
	}
	return ev
}
