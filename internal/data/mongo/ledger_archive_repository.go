package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
)

var _ ledger.ArchiveRepository = (*LedgerArchiveRepository)(nil)

// LedgerArchiveRepository implements ledger.ArchiveRepository for MongoDB
type LedgerArchiveRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerArchiveRepository creates a new MongoDB ledger event archive
func NewLedgerArchiveRepository(logger *slog.Logger, db *mongo.Database) *LedgerArchiveRepository {
	return &LedgerArchiveRepository{
		coll:   db.Collection(persistence.CollectionLedgerEvents),
		logger: logger,
		now:    time.Now,
	}
}

// EnsureIndexes creates the unique transaction index the archive relies on
// for idempotency, plus the history index
func (r *LedgerArchiveRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_transaction_id"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "occurred_at", Value: -1}},
			Options: options.Index().SetName("idx_user_occurred"),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create ledger archive indexes: %w", err)
	}
	return nil
}

// Save archives an event. A second delivery of the same transaction returns
// ErrDuplicateEvent.
func (r *LedgerArchiveRepository) Save(ctx context.Context, event *ledger.Event) error {
	archivedAt := r.now().UTC()
	doc := *event
	doc.ArchivedAt = &archivedAt

	if _, err := r.coll.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateEvent{TransactionID: event.TransactionID}
		}
		r.logger.Error("Failed to archive ledger event",
			"transaction_id", event.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to archive ledger event: %w", err)
	}

	event.ArchivedAt = &archivedAt
	return nil
}

// GetByTransactionID retrieves an archived event
func (r *LedgerArchiveRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*ledger.Event, error) {
	var event ledger.Event
	err := r.coll.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEventNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get ledger event",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get ledger event: %w", err)
	}

	return &event, nil
}

// ListByUser returns a page of the user's events, newest first
func (r *LedgerArchiveRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ledger.Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		r.logger.Error("Failed to list ledger events",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list ledger events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]*ledger.Event, 0, limit)
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode ledger events",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode ledger events: %w", err)
	}

	return events, nil
}

// CountByUser counts the user's archived events
func (r *LedgerArchiveRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		r.logger.Error("Failed to count ledger events",
			"user_id", userID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count ledger events: %w", err)
	}

	return count, nil
}
