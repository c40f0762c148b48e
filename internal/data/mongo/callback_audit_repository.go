package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarot-payment-ledger/internal/domain/audit"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
)

var _ audit.Repository = (*CallbackAuditRepository)(nil)

// CallbackAuditRepository implements audit.Repository for MongoDB
type CallbackAuditRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewCallbackAuditRepository creates a new MongoDB callback audit log
func NewCallbackAuditRepository(logger *slog.Logger, db *mongo.Database) *CallbackAuditRepository {
	return &CallbackAuditRepository{
		coll:   db.Collection(persistence.CollectionPaymentCallbacks),
		logger: logger,
	}
}

// EnsureIndexes creates the lookup index by order reference
func (r *CallbackAuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "out_trade_no", Value: 1}, {Key: "received_at", Value: -1}},
		Options: options.Index().SetName("idx_out_trade_no_received"),
	})
	if err != nil {
		return fmt.Errorf("failed to create callback audit index: %w", err)
	}
	return nil
}

func (r *CallbackAuditRepository) Record(ctx context.Context, record *audit.CallbackRecord) error {
	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		r.logger.Error("Failed to record payment callback",
			"out_trade_no", record.OutTradeNo,
			"verdict", string(record.Verdict),
			"error", err)
		return fmt.Errorf("failed to record payment callback: %w", err)
	}
	return nil
}
