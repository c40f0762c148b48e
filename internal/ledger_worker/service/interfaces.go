package service

import (
	"context"

	"github.com/tarot-payment-ledger/internal/domain/ledger"
)

// ArchiveService stores consumed ledger events for the history API.
type ArchiveService interface {
	ArchiveEvent(ctx context.Context, event *ledger.Event) error
}
