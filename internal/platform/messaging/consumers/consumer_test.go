package consumers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/domain/shared"
)

// fakeReader serves queued messages and records commits
type fakeReader struct {
	mu        sync.Mutex
	messages  chan kafka.Message
	committed []kafka.Message
	fetchErr  error
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeReader{messages: ch}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	fetchErr := r.fetchErr
	r.fetchErr = nil
	r.mu.Unlock()
	if fetchErr != nil {
		return kafka.Message{}, fetchErr
	}

	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	offsets := make([]int64, 0, len(r.committed))
	for _, m := range r.committed {
		offsets = append(offsets, m.Offset)
	}
	return offsets
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewKafkaConsumer(t *testing.T) {
	logger := newTestLogger()
	cfg := &config.KafkaConfig{
		Brokers:          "localhost:9092",
		LedgerEventTopic: "ledger_events",
		ConsumerGroup:    "ledger-archiver",
		MinBytes:         1024,
		MaxBytes:         10240,
		MaxWait:          time.Second,
		StartOffset:      kafka.LastOffset,
	}

	consumer := NewKafkaConsumer(context.Background(), logger, cfg)
	require.NotNil(t, consumer)
	require.NotNil(t, consumer.reader, "Kafka reader should be initialized")
	assert.Equal(t, logger, consumer.logger)
	assert.Equal(t, time.Second, consumer.fetchBackoff)
	assert.NoError(t, consumer.Close())
}

func TestKafkaConsumer_Subscribe_CommitsOnlyHandledMessages(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Topic: "ledger_events", Offset: 1, Key: []byte("u1"), Value: []byte(`{"ok":true}`)},
		kafka.Message{Topic: "ledger_events", Offset: 2, Key: []byte("u1"), Value: []byte(`{"ok":false}`)},
		kafka.Message{Topic: "ledger_events", Offset: 3, Key: []byte("u2"), Value: []byte(`{"ok":true}`),
			Headers: []kafka.Header{{Key: "correlation_id", Value: []byte("req-42")}}},
	)
	consumer := &KafkaConsumer{reader: reader, logger: newTestLogger(), fetchBackoff: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seenCorrelation []string
	handled := make(chan struct{}, 3)
	handler := func(ctx context.Context, key []byte, value []byte) error {
		defer func() { handled <- struct{}{} }()
		mu.Lock()
		seenCorrelation = append(seenCorrelation, shared.CorrelationIDFromContext(ctx))
		mu.Unlock()
		if string(value) == `{"ok":false}` {
			return errors.New("handler failed")
		}
		return nil
	}

	require.NoError(t, consumer.Subscribe(ctx, "ledger_events", "ledger-archiver", handler))

	for i := 0; i < 3; i++ {
		select {
		case <-handled:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handler")
		}
	}

	assert.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{1, 3}, reader.committedOffsets())

	mu.Lock()
	assert.Equal(t, []string{"", "", "req-42"}, seenCorrelation)
	mu.Unlock()
}

func TestKafkaConsumer_Subscribe_RetriesAfterFetchError(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "ledger_events", Offset: 7, Key: []byte("u1")})
	reader.fetchErr = errors.New("broker unavailable")
	consumer := &KafkaConsumer{reader: reader, logger: newTestLogger(), fetchBackoff: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, consumer.Subscribe(ctx, "ledger_events", "ledger-archiver", func(context.Context, []byte, []byte) error {
		return nil
	}))

	assert.Eventually(t, func() bool {
		offsets := reader.committedOffsets()
		return len(offsets) == 1 && offsets[0] == 7
	}, 2*time.Second, 10*time.Millisecond)
}

func TestKafkaConsumer_Close(t *testing.T) {
	t.Run("CloseWithNilReader", func(t *testing.T) {
		consumer := &KafkaConsumer{
			reader: nil,
			logger: newTestLogger(),
		}
		err := consumer.Close()
		require.NoError(t, err, "Close should return nil if reader is nil")
	})

	t.Run("CloseDelegatesToReader", func(t *testing.T) {
		reader := newFakeReader()
		consumer := &KafkaConsumer{reader: reader, logger: newTestLogger()}
		require.NoError(t, consumer.Close())
		assert.True(t, reader.closed)
	})
}
