package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

// Message carries a ledger event written in the same transaction as the
// balance change, until the relay publishes it
type Message struct {
	ID            int64                  `json:"id"`
	TransactionID uuid.UUID              `json:"transaction_id"`
	UserID        uuid.UUID              `json:"user_id"`
	EventType     ledger.TransactionType `json:"event_type"`
	Payload       json.RawMessage        `json:"payload"`
	Status        shared.OutboxStatus    `json:"status"`
	Attempts      int                    `json:"attempts"`
	CreatedAt     time.Time              `json:"created_at"`
	LastAttemptAt *time.Time             `json:"last_attempt_at,omitempty"`
}

func NewMessage(event *ledger.Event) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		TransactionID: event.TransactionID,
		UserID:        event.UserID,
		EventType:     event.Type,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// LedgerEvent decodes the payload
func (m *Message) LedgerEvent() (*ledger.Event, error) {
	var event ledger.Event
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
