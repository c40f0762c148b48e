// Package sweeper expires pending orders whose checkout was abandoned.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/tarot-payment-ledger/internal/config"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/metrics"
)

// ExpirySweeper moves stale pending orders to expired. A late gateway
// notification can still settle an expired order.
type ExpirySweeper struct {
	orderRepo order.Repository
	logger    *slog.Logger
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewExpirySweeper(cfg *config.OrderConfig, orderRepo order.Repository, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		orderRepo: orderRepo,
		logger:    logger,
		ttl:       cfg.PendingTTL,
		interval:  cfg.ExpirySweepInterval,
		now:       time.Now,
	}
}

// Start sweeps on every tick until ctx is canceled
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.logger.Info("Starting order expiry sweeper", "pending_ttl", s.ttl.String(), "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Order expiry sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Order expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep expires pending orders created more than ttl ago and returns how many moved
func (s *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	cutoff := now.Add(-s.ttl)
	n, err := s.orderRepo.ExpirePending(ctx, cutoff, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.RecordOrdersExpired(n)
		s.logger.Info("Expired abandoned orders", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
