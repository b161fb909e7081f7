package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/internal/payments"
	"github.com/campusworks/campusworks-backend/pkg/db/models"
	"github.com/campusworks/campusworks-backend/pkg/enums"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
)

// reconcileTarget is the local state one event kind steers toward. A zero
// orderStatus means the event touches the transaction only.
type reconcileTarget struct {
	txStatus    enums.PaymentStatus
	orderStatus enums.OrderStatus
}

var targetsByKind = map[payments.EventKind]reconcileTarget{
	payments.EventKindIntentSucceeded: {
		txStatus:    enums.PaymentStatusSucceeded,
		orderStatus: enums.OrderStatusConfirmed,
	},
	payments.EventKindIntentProcessing: {
		txStatus:    enums.PaymentStatusProcessing,
		orderStatus: enums.OrderStatusPaymentProcessing,
	},
	payments.EventKindIntentFailed: {
		txStatus:    enums.PaymentStatusFailed,
		orderStatus: enums.OrderStatusPaymentFailed,
	},
	// Refunds close the transaction but leave the order where it is; what
	// happens to the work is a human decision, not a gateway one.
	payments.EventKindChargeRefunded: {
		txStatus: enums.PaymentStatusRefunded,
	},
}

// allowedTxTransitions guards transaction state the same way the order table
// guards order state. Terminal states accept nothing except the
// succeeded-to-refunded edge.
var allowedTxTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending:    {enums.PaymentStatusProcessing, enums.PaymentStatusSucceeded, enums.PaymentStatusFailed},
	enums.PaymentStatusProcessing: {enums.PaymentStatusSucceeded, enums.PaymentStatusFailed},
	enums.PaymentStatusSucceeded:  {enums.PaymentStatusRefunded},
	enums.PaymentStatusFailed:     {},
	enums.PaymentStatusRefunded:   {},
}

func canTransitionTx(from, to enums.PaymentStatus) bool {
	for _, candidate := range allowedTxTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Reconcile folds one verified gateway event into local state. It is safe to
// call with the same event any number of times and with events out of order:
// duplicates and regressions are detected against current state and skipped,
// never producing an error, so the webhook endpoint can acknowledge them. An
// error return means local state was NOT durably updated and the caller must
// let the gateway retry.
func (s *Service) Reconcile(ctx context.Context, event *payments.Event) (ReconcileOutcome, error) {
	if event == nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	ctx = s.log.WithField(ctx, "event_id", event.ID)
	ctx = s.log.WithField(ctx, "event_kind", event.Kind.String())

	switch event.Kind {
	case payments.EventKindUnhandled:
		s.log.Info(ctx, "ignoring unhandled event kind")
		return OutcomeIgnored, nil
	case payments.EventKindAccountUpdated:
		return s.reconcileAccount(ctx, event)
	}

	return s.reconcileIntent(ctx, event)
}

func (s *Service) reconcileAccount(ctx context.Context, event *payments.Event) (ReconcileOutcome, error) {
	snap := event.Account
	if snap == nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "account snapshot required")
	}

	onboardingComplete := snap.ChargesEnabled && snap.PayoutsEnabled && snap.DetailsSubmitted
	rows, err := s.accounts.UpdateReadiness(ctx, snap.AccountID, onboardingComplete, snap.DetailsSubmitted)
	if err != nil {
		return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating account readiness")
	}
	if rows == 0 {
		s.log.Warn(s.log.WithField(ctx, "account_id", snap.AccountID), "account event matched no user")
		return OutcomeUnmatched, nil
	}

	s.log.Info(ctx, "account readiness updated")
	return OutcomeApplied, nil
}

func (s *Service) reconcileIntent(ctx context.Context, event *payments.Event) (ReconcileOutcome, error) {
	target, ok := targetsByKind[event.Kind]
	if !ok {
		return OutcomeIgnored, nil
	}
	if event.IntentID == "" {
		s.log.Warn(ctx, "event carried no payment intent id")
		return OutcomeUnmatched, nil
	}

	ctx = s.log.WithIntentID(ctx, event.IntentID)

	transaction, err := s.repo.FindTransactionByIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn(ctx, "event matched no transaction")
			return OutcomeUnmatched, nil
		}
		return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving transaction")
	}

	orderID := transaction.OrderID
	s.locks.Lock(orderID.String())
	defer s.locks.Unlock(orderID.String())

	ctx = s.log.WithOrderID(ctx, orderID.String())

	// Re-read under the lock; the row may have moved since the lookup.
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return OutcomeIgnored, err
	}
	current := findTransaction(order, transaction.ID)
	if current == nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeInternal, "transaction missing from order")
	}

	moveTx := current.Status != target.txStatus
	if moveTx && !canTransitionTx(current.Status, target.txStatus) {
		s.log.Warn(s.log.WithField(ctx, "tx_status", current.Status.String()), "stale event skipped")
		return OutcomeStale, nil
	}

	moveOrder := target.orderStatus != "" &&
		order.Status != target.orderStatus &&
		CanTransition(order.Status, target.orderStatus)

	if !moveTx && !moveOrder {
		s.log.Info(ctx, "event already reflected")
		return OutcomeDuplicate, nil
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if moveTx {
			current.Status = target.txStatus
			if event.FailureMessage != "" {
				current.GatewayResponse = models.TruncateGatewayResponse(event.FailureMessage)
			}
			if err := repo.UpdateTransaction(ctx, current); err != nil {
				return err
			}
		}
		if moveOrder {
			// The cron sweeper writes from another process; condition the move
			// on the status the decision was made against.
			rows, err := repo.UpdateOrderStatusFrom(ctx, orderID, []enums.OrderStatus{order.Status}, target.orderStatus)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrOrderMovedConcurrently
			}
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, ErrOrderMovedConcurrently) {
			// Roll everything back and let the gateway retry decide against
			// fresh state.
			return OutcomeIgnored, txErr
		}
		return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "applying event")
	}

	s.log.Info(ctx, "event applied")
	return OutcomeApplied, nil
}

func findTransaction(order *models.Order, id uuid.UUID) *models.PaymentTransaction {
	for i := range order.Transactions {
		if order.Transactions[i].ID == id {
			return &order.Transactions[i]
		}
	}
	return nil
}
