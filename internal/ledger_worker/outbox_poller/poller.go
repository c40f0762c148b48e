package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/domain/outbox"
	"github.com/tarot-payment-ledger/internal/domain/shared"
	"github.com/tarot-payment-ledger/internal/metrics"
)

const (
	// processedRetention is how long published rows are kept for inspection
	processedRetention = 7 * 24 * time.Hour
	cleanupInterval    = time.Hour
)

// Poller relays pending outbox messages to Kafka
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        EventPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	lastCleanup      time.Time
	now              func() time.Time
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		now:              time.Now,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
			p.cleanup(ctx)
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		err := p.publisher.PublishEvent(ctx, msg)
		if err == nil {
			metrics.RecordOutboxMessage("published")
			continue
		}

		logger := p.logger.With("outbox_id", msg.ID, "transaction_id", msg.TransactionID.String())
		if errors.Is(err, ErrUnpublishable{}) {
			logger.Error("Outbox message is unpublishable", "error", err)
			metrics.RecordOutboxMessage("failed")
			continue
		}

		logger.Error("Failed to publish outbox message", "current_attempts", msg.Attempts, "error", err)

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			logger.Error("Failed to increment attempts for outbox message", "error", errInc)
			continue
		}

		if msg.Attempts+1 >= p.maxRetryAttempts {
			logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH", "attempts_made", msg.Attempts+1)
			if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
				logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", errUpdate)
			}
			metrics.RecordOutboxMessage("failed")
			continue
		}
		metrics.RecordOutboxMessage("retry")
	}
	return nil
}

// cleanup drops processed rows past retention, at most once per cleanupInterval
func (p *Poller) cleanup(ctx context.Context) {
	now := p.now()
	if now.Sub(p.lastCleanup) < cleanupInterval {
		return
	}
	p.lastCleanup = now

	deleted, err := p.outboxRepo.DeleteProcessedBefore(ctx, now.Add(-processedRetention))
	if err != nil {
		p.logger.Warn("Failed to delete processed outbox messages", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("Deleted processed outbox messages", "count", deleted)
	}
}
