package order

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	errors "github.com/awakery/payments-engine/internal"
	ordermodel "github.com/awakery/payments-engine/internal/core/datamodel/order"
	"github.com/awakery/payments-engine/internal/core/events"
)

// DefaultAmountTolerance absorbs gateway rounding on the notified gross
// amount. Anything beyond it is rejected for manual reconciliation.
var DefaultAmountTolerance = decimal.RequireFromString("0.01")

// Service is the order ledger: the single entry point for payment state
// transitions. Correctness under concurrent deliveries rests on the
// repository's conditional updates, not on locking here.
type Service struct {
	repo      RepositoryAPI
	gateway   string
	tolerance decimal.Decimal
	eventBus  *events.EventBus
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, gateway string, tolerance decimal.Decimal, eventBus *events.EventBus, logger *slog.Logger) *Service {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = DefaultAmountTolerance
	}
	return &Service{
		repo:      repo,
		gateway:   gateway,
		tolerance: tolerance,
		eventBus:  eventBus,
		logger:    logger,
	}
}

func (s *Service) GetByReference(ctx context.Context, reference string) (*ordermodel.Order, error) {
	ord, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, errors.ErrOrderNotFound.WithCause(err)
	}
	return ord, nil
}

// TransactionsByReference returns the order's audit trail, oldest first.
func (s *Service) TransactionsByReference(ctx context.Context, reference string) ([]*ordermodel.PaymentTransaction, error) {
	txns, err := s.repo.TransactionsByReference(ctx, reference)
	if err != nil {
		return nil, errors.NewInternalError("failed to load payment transactions", err)
	}
	return txns, nil
}

// ConfirmPayment applies a verified "complete" notification to the
// order. It is safe to call any number of times with the same input:
// exactly one call wins the pending to paid transition and appends the
// audit row, every later call returns success without mutating.
func (s *Service) ConfirmPayment(ctx context.Context, reference, gatewayTransactionID string, amount decimal.Decimal) error {
	ord, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		s.logger.Warn("confirm: order not found, gateway may redeliver",
			"order_reference", reference,
			"gateway_transaction_id", gatewayTransactionID)
		return errors.ErrOrderNotFound.WithCause(err)
	}

	// Idempotent short-circuit: duplicate delivery of a confirmation
	// that already landed. No amount re-check, no second audit row.
	if ord.PaymentStatus == ordermodel.StatusPaid {
		s.logger.Info("confirm: order already paid, ignoring duplicate notification",
			"order_reference", reference,
			"gateway_transaction_id", gatewayTransactionID)
		return nil
	}

	if diff := ord.Total.Sub(amount).Abs(); diff.GreaterThan(s.tolerance) {
		s.logger.Error("confirm: amount mismatch, flagging for manual review",
			"order_reference", reference,
			"expected", ord.Total.String(),
			"received", amount.String())
		return errors.ErrAmountMismatch.WithDetails(map[string]string{
			"expected": ord.Total.String(),
			"received": amount.String(),
		})
	}

	updated, err := s.repo.MarkPaidIfPending(ctx, ord.ID, ord.OrderReference, gatewayTransactionID, s.gateway, amount)
	if err != nil {
		return errors.NewInternalError("failed to mark order paid", err)
	}

	if !updated {
		// Lost the race against a concurrent delivery, or the order
		// moved to a non-pending state in between. Re-read to decide.
		current, err := s.repo.GetByReference(ctx, reference)
		if err != nil {
			return errors.NewInternalError("failed to re-read order after no-op update", err)
		}
		if current.PaymentStatus == ordermodel.StatusPaid {
			s.logger.Info("confirm: concurrent delivery won the transition",
				"order_reference", reference)
			return nil
		}
		return errors.ErrInvalidStatus.WithDetails(map[string]string{
			"payment_status": current.PaymentStatus,
		})
	}

	s.logger.Info("order marked paid",
		"order_reference", reference,
		"gateway", s.gateway,
		"gateway_transaction_id", gatewayTransactionID,
		"amount", amount.String())

	if s.eventBus != nil {
		event := events.NewPaymentConfirmedEvent(reference, s.gateway, gatewayTransactionID, amount)
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish payment confirmed event", "error", err, "event_id", event.EventID())
		}
	}

	return nil
}

// FailPayment applies a "failed" notification: pending to failed, with the
// same idempotent no-op semantics as ConfirmPayment.
func (s *Service) FailPayment(ctx context.Context, reference, gatewayTransactionID string, amount decimal.Decimal) error {
	ord, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return errors.ErrOrderNotFound.WithCause(err)
	}

	if ord.PaymentStatus == ordermodel.StatusFailed {
		return nil
	}

	updated, err := s.repo.MarkFailedIfPending(ctx, ord.ID, ord.OrderReference, gatewayTransactionID, s.gateway, amount)
	if err != nil {
		return errors.NewInternalError("failed to mark order failed", err)
	}

	if !updated {
		current, err := s.repo.GetByReference(ctx, reference)
		if err != nil {
			return errors.NewInternalError("failed to re-read order after no-op update", err)
		}
		if current.PaymentStatus == ordermodel.StatusFailed {
			return nil
		}
		return errors.ErrInvalidStatus.WithDetails(map[string]string{
			"payment_status": current.PaymentStatus,
		})
	}

	s.logger.Info("order marked failed",
		"order_reference", reference,
		"gateway_transaction_id", gatewayTransactionID)

	if s.eventBus != nil {
		event := events.NewPaymentFailedEvent(reference, s.gateway, "gateway reported failed payment")
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish payment failed event", "error", err, "event_id", event.EventID())
		}
	}

	return nil
}

// RefundOrder is the only paid to refunded path. Already-refunded orders
// return success without mutating.
func (s *Service) RefundOrder(ctx context.Context, reference string) (*ordermodel.Order, error) {
	ord, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, errors.ErrOrderNotFound.WithCause(err)
	}

	if ord.PaymentStatus == ordermodel.StatusRefunded {
		return ord, nil
	}

	if ord.PaymentStatus != ordermodel.StatusPaid {
		return nil, errors.ErrInvalidStatus.WithDetails(map[string]string{
			"payment_status": ord.PaymentStatus,
		})
	}

	updated, err := s.repo.MarkRefundedIfPaid(ctx, ord.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to mark order refunded", err)
	}
	if !updated {
		current, err := s.repo.GetByReference(ctx, reference)
		if err != nil {
			return nil, errors.NewInternalError("failed to re-read order after no-op update", err)
		}
		if current.PaymentStatus == ordermodel.StatusRefunded {
			return current, nil
		}
		return nil, errors.ErrInvalidStatus.WithDetails(map[string]string{
			"payment_status": current.PaymentStatus,
		})
	}

	s.logger.Info("order refunded", "order_reference", reference)

	return s.repo.GetByReference(ctx, reference)
}
