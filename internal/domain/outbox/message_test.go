package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

func sampleEvent() *ledger.Event {
	return &ledger.Event{
		TransactionID: uuid.New(),
		UserID:        uuid.New(),
		Type:          ledger.TypeRecharge,
		Amount:        400,
		RechargeValue: 380,
		BalanceAfter:  430,
		TotalRecharge: 380,
		ReferenceID:   "TAROT17400000001234",
		OccurredAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestNewMessage(t *testing.T) {
	event := sampleEvent()

	before := time.Now()
	msg, err := NewMessage(event)
	after := time.Now()

	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, event.TransactionID, msg.TransactionID)
	assert.Equal(t, event.UserID, msg.UserID)
	assert.Equal(t, ledger.TypeRecharge, msg.EventType)
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Equal(t, 0, msg.Attempts)
	assert.Nil(t, msg.LastAttemptAt)
	assert.WithinDuration(t, before, msg.CreatedAt, after.Sub(before)+time.Millisecond)

	var decoded ledger.Event
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, event.TransactionID, decoded.TransactionID)
	assert.Equal(t, event.Amount, decoded.Amount)
}

func TestMessage_StateChanges(t *testing.T) {
	t.Run("IncrementAttempts", func(t *testing.T) {
		earlier := time.Now().Add(-time.Hour)
		msg := &Message{Attempts: 1, LastAttemptAt: &earlier}

		msg.IncrementAttempts()

		assert.Equal(t, 2, msg.Attempts)
		require.NotNil(t, msg.LastAttemptAt)
		assert.True(t, msg.LastAttemptAt.After(earlier))
	})

	t.Run("MarkAsProcessed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsProcessed()

		assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})

	t.Run("MarkAsFailed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsFailed()

		assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})
}

func TestMessage_LedgerEvent(t *testing.T) {
	t.Run("DecodesPayload", func(t *testing.T) {
		event := sampleEvent()
		msg, err := NewMessage(event)
		require.NoError(t, err)

		decoded, err := msg.LedgerEvent()
		require.NoError(t, err)
		assert.Equal(t, event.TransactionID, decoded.TransactionID)
		assert.Equal(t, event.BalanceAfter, decoded.BalanceAfter)
		assert.Equal(t, event.ReferenceID, decoded.ReferenceID)
		assert.True(t, event.OccurredAt.Equal(decoded.OccurredAt))
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		msg := &Message{Payload: json.RawMessage(`{"transaction_id":`)}
		_, err := msg.LedgerEvent()
		assert.Error(t, err)
	})
}
