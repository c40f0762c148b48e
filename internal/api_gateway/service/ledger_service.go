package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/metrics"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
	"github.com/tarot-payment-ledger/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ClaimResult is the outcome of a daily bonus claim
type ClaimResult string

const (
	ClaimResultClaimed        ClaimResult = "claimed"
	ClaimResultAlreadyClaimed ClaimResult = "already_claimed"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// LedgerPolicy holds the wallet rules that come from configuration
type LedgerPolicy struct {
	DailyBonus      int64
	UnlockThreshold int64
	Location        *time.Location // calendar used for the daily bonus
}

// LedgerServiceImpl implements the LedgerService interface
type LedgerServiceImpl struct {
	txRunner   persistence.TxRunner
	balances   BalanceManager
	ledgerRepo ledger.Repository
	archive    ledger.ArchiveRepository
	policy     LedgerPolicy
	now        func() time.Time
	logger     *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	logger *slog.Logger,
	txRunner persistence.TxRunner,
	balances BalanceManager,
	ledgerRepo ledger.Repository,
	archive ledger.ArchiveRepository,
	policy LedgerPolicy,
) *LedgerServiceImpl {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &LedgerServiceImpl{
		txRunner:   txRunner,
		balances:   balances,
		ledgerRepo: ledgerRepo,
		archive:    archive,
		policy:     policy,
		now:        time.Now,
		logger:     logger,
	}
}

var _ LedgerService = (*LedgerServiceImpl)(nil)

// Credit appends a recharge. Crediting never fails for lack of funds.
func (s *LedgerServiceImpl) Credit(ctx context.Context, userID uuid.UUID, amount, rechargeValue int64, description, referenceID string) (*ledger.Transaction, error) {
	return s.post(ctx, "Credit", ledger.Posting{
		UserID:        userID,
		Type:          ledger.TypeRecharge,
		Amount:        amount,
		RechargeValue: rechargeValue,
		Description:   description,
		ReferenceID:   ledger.Reference(referenceID),
	})
}

// Consume debits amount when the locked balance covers it
func (s *LedgerServiceImpl) Consume(ctx context.Context, userID uuid.UUID, amount int64, description string) (*ledger.Transaction, error) {
	return s.post(ctx, "Consume", ledger.Posting{
		UserID:      userID,
		Type:        ledger.TypeConsume,
		Amount:      amount,
		Description: description,
	})
}

// Refund gives coins back to the user
func (s *LedgerServiceImpl) Refund(ctx context.Context, userID uuid.UUID, amount int64, description, referenceID string) (*ledger.Transaction, error) {
	return s.post(ctx, "Refund", ledger.Posting{
		UserID:      userID,
		Type:        ledger.TypeRefund,
		Amount:      amount,
		Description: description,
		ReferenceID: ledger.Reference(referenceID),
	})
}

// ClaimDailyBonus credits the daily bonus at most once per calendar day. The
// marker update and the credit commit together.
func (s *LedgerServiceImpl) ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (result ClaimResult, txn *ledger.Transaction, err error) {
	ctx, span := otel.Tracer("ledger-service").Start(ctx, "ClaimDailyBonus")
	defer func() { tracing.EndSpan(span, err) }()

	if userID == uuid.Nil {
		return "", nil, ledger.ErrMissingUser
	}

	now := s.now()
	today := ledger.DateOf(now, s.policy.Location)
	result = ClaimResultAlreadyClaimed

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.balances.OpenAccount(ctx, tx, userID); err != nil {
			return err
		}

		claimed, err := s.ledgerRepo.WithTx(tx).MarkBonusClaimed(ctx, userID, today, now)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		txn, _, err = s.balances.Post(ctx, tx, ledger.Posting{
			UserID:      userID,
			Type:        ledger.TypeDailyBonus,
			Amount:      s.policy.DailyBonus,
			Description: "Daily bonus " + today.Format(time.DateOnly),
		})
		if err != nil {
			return err
		}
		result = ClaimResultClaimed
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to claim daily bonus", "user_id", userID.String(), "error", err)
		metrics.RecordLedgerOperation(string(ledger.TypeDailyBonus), "error")
		return "", nil, fmt.Errorf("failed to claim daily bonus: %w", err)
	}

	span.SetAttributes(attribute.String("claim.result", string(result)))
	metrics.RecordLedgerOperation(string(ledger.TypeDailyBonus), string(result))
	s.logger.Info("Daily bonus claim", "user_id", userID.String(), "result", string(result), "day", today.Format(time.DateOnly))
	return result, txn, nil
}

// GetBalanceSnapshot returns the authoritative wallet state. A user without a
// wallet gets one opened, initial grant included.
func (s *LedgerServiceImpl) GetBalanceSnapshot(ctx context.Context, userID uuid.UUID) (*ledger.Snapshot, error) {
	if userID == uuid.Nil {
		return nil, ledger.ErrMissingUser
	}

	account, err := s.ledgerRepo.GetAccount(ctx, userID)
	if errors.Is(err, ledger.ErrAccountNotFound{}) {
		err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
			var openErr error
			account, openErr = s.balances.OpenAccount(ctx, tx, userID)
			return openErr
		})
	}
	if err != nil {
		s.logger.Error("Failed to load wallet", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	snapshot := account.Snapshot(s.policy.UnlockThreshold, ledger.DateOf(s.now(), s.policy.Location))
	return &snapshot, nil
}

// ListTransactions reads the archived ledger events for userID
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*ledger.Event, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	offset := (page - 1) * perPage

	events, err := s.archive.ListByUser(ctx, userID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.archive.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

func (s *LedgerServiceImpl) post(ctx context.Context, op string, posting ledger.Posting) (txn *ledger.Transaction, err error) {
	ctx, span := otel.Tracer("ledger-service").Start(ctx, op)
	defer func() { tracing.EndSpan(span, err) }()
	span.SetAttributes(
		attribute.String("ledger.type", string(posting.Type)),
		attribute.Int64("ledger.amount", posting.Amount),
	)

	if err = posting.Validate(); err != nil {
		metrics.RecordLedgerOperation(string(posting.Type), "invalid")
		return nil, err
	}

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var postErr error
		txn, _, postErr = s.balances.Post(ctx, tx, posting)
		return postErr
	})
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		metrics.RecordLedgerOperation(string(posting.Type), "insufficient_funds")
		return nil, err
	case err != nil:
		s.logger.Error("Failed to post ledger transaction",
			"user_id", posting.UserID.String(),
			"type", string(posting.Type),
			"amount", posting.Amount,
			"error", err,
		)
		metrics.RecordLedgerOperation(string(posting.Type), "error")
		return nil, err
	}

	metrics.RecordLedgerOperation(string(posting.Type), "ok")
	return txn, nil
}
