package components

import (
	"log/slog"

	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/ledger_worker/service"
)

// CreateArchiveService wires the archive service behind a worker pool when one
// is configured.
func CreateArchiveService(
	archiveRepo ledger.ArchiveRepository,
	logger *slog.Logger,
	cfg *config.Config,
) service.ArchiveService {
	baseService := service.NewArchiveService(archiveRepo, logger.With("component", "archive"))

	if cfg.WorkerPool.Size <= 0 {
		logger.Info("Worker pool disabled, archiving inline")
		return baseService
	}

	workerPoolService, err := service.NewWorkerPoolArchiveService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool archive service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
