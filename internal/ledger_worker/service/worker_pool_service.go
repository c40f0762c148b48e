package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/metrics"
)

// WorkerPoolArchiveService runs archive writes on a bounded ants pool
type WorkerPoolArchiveService struct {
	baseService ArchiveService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolArchiveService(
	baseService ArchiveService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolArchiveService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolArchiveService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ArchiveEvent submits the event to the pool and waits for the result, so the
// consumer only commits offsets for archived events.
func (s *WorkerPoolArchiveService) ArchiveEvent(ctx context.Context, event *ledger.Event) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	resultChan := make(chan error, 1)
	eventCopy := *event

	err := s.pool.Submit(func() {
		metrics.SetWorkerPoolRunning(s.pool.Running())
		resultChan <- s.baseService.ArchiveEvent(ctx, &eventCopy)
	})
	if err != nil {
		logger.Error("Failed to submit ledger event to worker pool",
			"transaction_id", event.TransactionID.String(),
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolArchiveService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
	metrics.SetWorkerPoolRunning(0)
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolArchiveService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolArchiveService) Capacity() int {
	return s.pool.Cap()
}
