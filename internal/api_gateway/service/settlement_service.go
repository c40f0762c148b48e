package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tarot-payment-ledger/internal/domain/audit"
	"github.com/tarot-payment-ledger/internal/domain/ledger"
	"github.com/tarot-payment-ledger/internal/domain/order"
	"github.com/tarot-payment-ledger/internal/domain/shared"
	"github.com/tarot-payment-ledger/internal/metrics"
	"github.com/tarot-payment-ledger/internal/platform/epay"
	"github.com/tarot-payment-ledger/internal/platform/persistence"
	"github.com/tarot-payment-ledger/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Outcome is the acknowledged result of a gateway notification
type Outcome string

const (
	OutcomeSettled        Outcome = "settled"
	OutcomeAlreadySettled Outcome = "already_settled"
	OutcomeIgnored        Outcome = "ignored"
)

// auditTimeout bounds the best-effort audit write
const auditTimeout = 3 * time.Second

// SettlementPolicy holds settlement rules that come from configuration
type SettlementPolicy struct {
	BonusCountsTowardRecharge bool
}

// SettlementServiceImpl implements the SettlementService interface
type SettlementServiceImpl struct {
	txRunner  persistence.TxRunner
	orderRepo order.Repository
	balances  BalanceManager
	verifier  NotificationVerifier
	auditRepo audit.Repository // optional
	policy    SettlementPolicy
	now       func() time.Time
	logger    *slog.Logger
}

// NewSettlementService creates a new settlement service. auditRepo may be nil.
func NewSettlementService(
	logger *slog.Logger,
	txRunner persistence.TxRunner,
	orderRepo order.Repository,
	balances BalanceManager,
	verifier NotificationVerifier,
	auditRepo audit.Repository,
	policy SettlementPolicy,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		txRunner:  txRunner,
		orderRepo: orderRepo,
		balances:  balances,
		verifier:  verifier,
		auditRepo: auditRepo,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
}

var _ SettlementService = (*SettlementServiceImpl)(nil)

// HandleNotification verifies a gateway callback and settles its order at most
// once. The order update and the wallet credit share one database transaction.
func (s *SettlementServiceImpl) HandleNotification(ctx context.Context, params map[string]string) (outcome Outcome, err error) {
	ctx, span := otel.Tracer("settlement-service").Start(ctx, "HandleNotification")
	defer func() { tracing.EndSpan(span, err) }()

	logger := s.logger.With(
		"out_trade_no", params["out_trade_no"],
		"remote_ip", shared.ClientIPFromContext(ctx),
	)
	if correlationID := shared.CorrelationIDFromContext(ctx); correlationID != "" {
		logger = logger.With("correlation_id", correlationID)
	}

	var settled *order.Order
	defer func() {
		s.record(ctx, logger, params, outcome, err)
		if settled != nil && err == nil {
			metrics.RecordSettlement(settled.TotalCoins())
		}
	}()

	if !s.verifier.VerifyParams(params) {
		logger.Warn("Rejected notification with invalid signature")
		return "", ErrSignatureInvalid
	}

	n, err := epay.ParseNotification(params)
	if err != nil {
		logger.Warn("Rejected malformed notification", "error", err)
		return "", fmt.Errorf("%w: %w", ErrInvalidNotification, err)
	}
	if n.MerchantID != "" && n.MerchantID != s.verifier.MerchantID() {
		logger.Warn("Rejected notification for another merchant", "pid", n.MerchantID)
		return "", fmt.Errorf("%w: merchant id mismatch", ErrInvalidNotification)
	}
	span.SetAttributes(
		attribute.String("order.out_trade_no", n.OutTradeNo),
		attribute.String("epay.trade_status", n.TradeStatus),
	)

	if !n.Success() {
		logger.Info("Ignoring notification without successful trade status", "trade_status", n.TradeStatus)
		return OutcomeIgnored, nil
	}

	notifyData, err := json.Marshal(n.Raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification payload: %w", err)
	}

	outcome = OutcomeAlreadySettled
	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		orderRepo := s.orderRepo.WithTx(tx)

		o, err := orderRepo.LockForUpdate(ctx, n.OutTradeNo)
		if err != nil {
			if errors.Is(err, order.ErrOrderNotFound{}) {
				return fmt.Errorf("%w: %w", ErrOrderNotFound, err)
			}
			return err
		}

		switch o.Status {
		case order.StatusPaid:
			return nil
		case order.StatusFailed:
			return fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
		}

		if n.Money != nil && !n.Money.Equal(o.Amount) {
			logger.Warn("Notified amount does not match order", "notified", n.Money.StringFixed(2), "expected", o.MoneyString())
			return ErrAmountMismatch
		}

		if o.Status == order.StatusExpired {
			logger.Info("Settling expired order after late notification")
		}
		if err := o.MarkPaid(n.TradeNo, notifyData, s.now()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		if err := orderRepo.MarkPaid(ctx, o); err != nil {
			if errors.Is(err, order.ErrInvalidTransition{}) {
				return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
			}
			return err
		}

		if _, _, err := s.balances.Post(ctx, tx, ledger.Posting{
			UserID:        o.UserID,
			Type:          ledger.TypeRecharge,
			Amount:        o.TotalCoins(),
			RechargeValue: o.RechargeValue(s.policy.BonusCountsTowardRecharge),
			Description:   fmt.Sprintf("Recharge %d coins (order %s)", o.TotalCoins(), o.OutTradeNo),
			ReferenceID:   ledger.Reference(o.OutTradeNo),
		}); err != nil {
			return err
		}

		outcome = OutcomeSettled
		settled = o
		return nil
	})
	if err != nil {
		if !isSettlementRejection(err) {
			logger.Error("Failed to settle order", "error", err)
		}
		return "", err
	}

	if outcome == OutcomeAlreadySettled {
		logger.Info("Duplicate notification for settled order")
	} else {
		logger.Info("Order settled", "trade_no", n.TradeNo, "user_id", settled.UserID.String(), "coins", settled.TotalCoins())
	}
	return outcome, nil
}

// record writes the callback audit entry and verdict metric. Failures are logged only.
func (s *SettlementServiceImpl) record(ctx context.Context, logger *slog.Logger, params map[string]string, outcome Outcome, err error) {
	verdict := verdictFor(outcome, err)
	metrics.RecordPaymentCallback(string(verdict))

	if s.auditRepo == nil {
		return
	}

	rec := &audit.CallbackRecord{
		OutTradeNo:    params["out_trade_no"],
		TradeNo:       params["trade_no"],
		TradeStatus:   params["trade_status"],
		Verdict:       verdict,
		RemoteIP:      shared.ClientIPFromContext(ctx),
		Params:        audit.Redacted(params),
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		ReceivedAt:    s.now().UTC(),
	}
	if err != nil {
		rec.Reason = err.Error()
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if auditErr := s.auditRepo.Record(auditCtx, rec); auditErr != nil {
		logger.Warn("Failed to record callback audit", "error", auditErr)
	}
}

func verdictFor(outcome Outcome, err error) audit.Verdict {
	switch {
	case err != nil && isSettlementRejection(err):
		return audit.VerdictRejected
	case err != nil:
		return audit.VerdictError
	case outcome == OutcomeSettled:
		return audit.VerdictSettled
	case outcome == OutcomeAlreadySettled:
		return audit.VerdictAlreadySettled
	default:
		return audit.VerdictIgnored
	}
}

// isSettlementRejection reports errors caused by the notification itself
func isSettlementRejection(err error) bool {
	return errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrInvalidNotification) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrInvalidTransition)
}
