package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/internal/payments"
	"github.com/campusworks/campusworks-backend/pkg/config"
	"github.com/campusworks/campusworks-backend/pkg/db/models"
	"github.com/campusworks/campusworks-backend/pkg/enums"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	"github.com/campusworks/campusworks-backend/pkg/locks"
	"github.com/campusworks/campusworks-backend/pkg/logger"
)

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ListingFinder resolves the listing being purchased, provider included.
type ListingFinder interface {
	FindByID(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
}

// AccountReadinessStore applies connected-account readiness changes reported
// by the gateway.
type AccountReadinessStore interface {
	UpdateReadiness(ctx context.Context, accountID string, onboardingComplete, detailsSubmitted bool) (int64, error)
}

// Service drives the order lifecycle: checkout, payment initiation,
// cancellation, manual progression and webhook reconciliation. All mutations
// of a single order are serialized through a keyed lock so concurrent webhook
// deliveries and user actions cannot interleave their read-decide-write steps.
type Service struct {
	repo     Repository
	listings ListingFinder
	accounts AccountReadinessStore
	gateway  payments.IntentCreator
	tx       TxRunner
	locks    *locks.Keyed
	log      *logger.Logger
	cfg      config.PaymentsConfig
}

// NewService validates dependencies and builds the order lifecycle service.
func NewService(
	repo Repository,
	listings ListingFinder,
	accounts AccountReadinessStore,
	gateway payments.IntentCreator,
	tx TxRunner,
	log *logger.Logger,
	cfg config.PaymentsConfig,
) (*Service, error) {
	if repo == nil {
		return nil, errors.New("orders repository required")
	}
	if listings == nil {
		return nil, errors.New("listing finder required")
	}
	if accounts == nil {
		return nil, errors.New("account readiness store required")
	}
	if gateway == nil {
		return nil, errors.New("payment gateway required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if log == nil {
		return nil, errors.New("logger required")
	}

	return &Service{
		repo:     repo,
		listings: listings,
		accounts: accounts,
		gateway:  gateway,
		tx:       tx,
		locks:    locks.NewKeyed(),
		log:      log,
		cfg:      cfg,
	}, nil
}

// Create opens a new order in pending_payment, snapshotting the listing price
// so later edits cannot change what the client agreed to pay.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	listing, err := s.listings.FindByID(ctx, input.ListingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listing")
	}

	if !listing.IsActive {
		return nil, ErrListingInactive
	}
	if listing.ProviderID == input.ClientID {
		return nil, ErrSelfPurchase
	}
	if !listing.Provider.PaymentReady() {
		return nil, ErrProviderNotPaymentReady
	}

	order := &models.Order{
		ListingID:    listing.ID,
		ClientID:     input.ClientID,
		ProviderID:   listing.ProviderID,
		PriceAtOrder: listing.Price,
		Currency:     listing.Currency,
		Status:       enums.OrderStatusPendingPayment,
		ClientNote:   input.ClientNote,
		ScheduledAt:  input.ScheduledAt,
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}

	s.log.Info(s.log.WithOrderID(ctx, created.ID.String()), "order created")
	return created, nil
}

// InitiatePayment opens a payment intent for the order and moves it to
// pending_confirmation. The gateway call runs outside the database
// transaction; the transaction row and the status change commit together only
// after the gateway has handed back an intent.
func (s *Service) InitiatePayment(ctx context.Context, orderID uuid.UUID, actor Actor) (*InitiatePaymentResult, error) {
	s.locks.Lock(orderID.String())
	defer s.locks.Unlock(orderID.String())

	ctx = s.log.WithOrderID(ctx, orderID.String())

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != actor.UserID && actor.Role != RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the ordering client can pay")
	}

	if !CanInitiatePayment(order.Status) {
		if order.OpenTransaction() != nil {
			return nil, ErrPaymentAlreadyInFlight
		}
		return nil, invalidTransition(order.Status, enums.OrderStatusPendingConfirmation)
	}
	if order.OpenTransaction() != nil {
		return nil, ErrPaymentAlreadyInFlight
	}

	// Readiness can have been revoked since checkout; re-check before money moves.
	if !order.Listing.Provider.PaymentReady() {
		return nil, ErrProviderNotPaymentReady
	}

	split := payments.ComputeSplit(order.PriceAtOrder, s.cfg.FeeRateDecimal())

	intentCtx, cancel := context.WithTimeout(ctx, s.cfg.IntentTimeout)
	defer cancel()

	result, err := s.gateway.CreateIntent(intentCtx, payments.IntentRequest{
		Amount:               order.PriceAtOrder,
		Currency:             s.cfg.Currency,
		OrderID:              order.ID,
		Description:          fmt.Sprintf("Order %s: %s", order.ID, order.Listing.Title),
		DestinationAccountID: *order.Listing.Provider.StripeConnectedAccountID,
		PlatformFee:          split.PlatformFee,
	})
	if err != nil {
		s.log.Error(ctx, "payment intent creation failed", err)
		if moveErr := s.repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPaymentFailed); moveErr != nil {
			s.log.Error(ctx, "marking order payment_failed after gateway error", moveErr)
		}
		return nil, err
	}

	ctx = s.log.WithIntentID(ctx, result.IntentID)

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateTransaction(ctx, &models.PaymentTransaction{
			OrderID:               order.ID,
			StripePaymentIntentID: result.IntentID,
			Amount:                order.PriceAtOrder,
			Currency:              s.cfg.Currency,
			Status:                enums.PaymentStatusPending,
		}); err != nil {
			return err
		}
		return repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPendingConfirmation)
	})
	if txErr != nil {
		// The intent exists at the gateway but never reached the ledger; the
		// webhook for it will land unmatched and be acknowledged harmlessly.
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "recording payment intent")
	}

	s.log.Info(ctx, "payment intent opened")

	return &InitiatePaymentResult{
		OrderID:      order.ID,
		IntentID:     result.IntentID,
		ClientSecret: result.ClientSecret,
		Status:       enums.OrderStatusPendingConfirmation,
	}, nil
}

// Cancel ends an order before payment confirmation. The cancellation branch
// records who pulled the plug. Confirmed orders are out of scope here and must
// go through a refund.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	s.locks.Lock(input.OrderID.String())
	defer s.locks.Unlock(input.OrderID.String())

	ctx = s.log.WithOrderID(ctx, input.OrderID.String())

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	var target enums.OrderStatus
	switch {
	case input.Actor.Role == RoleClient && order.ClientID == input.Actor.UserID:
		target = enums.OrderStatusCancelledByClient
	case input.Actor.Role == RoleProvider && order.ProviderID == input.Actor.UserID:
		target = enums.OrderStatusCancelledByProvider
	case input.Actor.Role == RoleAdmin:
		target = enums.OrderStatusCancelledByProvider
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}

	if !CanCancel(order.Status) {
		return nil, ErrCancelAfterConfirmation
	}

	if err := s.repo.UpdateOrderStatus(ctx, order.ID, target); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling order")
	}
	order.Status = target

	s.log.Info(ctx, "order cancelled")
	return order, nil
}

// AbandonPayment marks a checkout the client walked away from. The open
// transaction is closed as failed and the order parks in payment_failed, from
// where a fresh attempt may start.
func (s *Service) AbandonPayment(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	s.locks.Lock(orderID.String())
	defer s.locks.Unlock(orderID.String())

	ctx = s.log.WithOrderID(ctx, orderID.String())

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != actor.UserID && actor.Role != RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the ordering client can abandon payment")
	}

	if order.Status != enums.OrderStatusPendingPayment && order.Status != enums.OrderStatusPendingConfirmation {
		return nil, invalidTransition(order.Status, enums.OrderStatusPaymentFailed)
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if open := order.OpenTransaction(); open != nil {
			open.Status = enums.PaymentStatusFailed
			open.GatewayResponse = models.TruncateGatewayResponse("abandoned by client")
			if err := repo.UpdateTransaction(ctx, open); err != nil {
				return err
			}
		}
		return repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPaymentFailed)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "abandoning payment")
	}
	order.Status = enums.OrderStatusPaymentFailed

	s.log.Info(ctx, "payment abandoned")
	return order, nil
}

// UpdateStatus applies a provider- or admin-driven change: forward along the
// post-payment happy path, or into a cancellation branch while the order is
// still cancellable. Payment-driven statuses are rejected here; they move
// through Reconcile.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	s.locks.Lock(input.OrderID.String())
	defer s.locks.Unlock(input.OrderID.String())

	ctx = s.log.WithOrderID(ctx, input.OrderID.String())

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if input.Actor.Role == RoleClient {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "clients cannot change order status directly")
	}
	if input.Actor.Role == RoleProvider && order.ProviderID != input.Actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another provider")
	}

	if !CanTransitionManually(order.Status, input.NewStatus) {
		// Completion attempted while payment is still pending is the common
		// mistake; give it a sharper error than the generic transition one.
		if input.NewStatus == enums.OrderStatusCompleted && !order.Status.IsTerminal() {
			return nil, ErrPaymentNotConfirmed
		}
		return nil, invalidTransition(order.Status, input.NewStatus)
	}

	// Cancellation branches carry blame; a provider may only pin it on
	// themselves, while an admin may record either side.
	if input.NewStatus == enums.OrderStatusCancelledByClient && input.Actor.Role != RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "providers cannot cancel on the client's behalf")
	}

	if err := s.repo.UpdateOrderStatus(ctx, order.ID, input.NewStatus); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}
	order.Status = input.NewStatus

	s.log.Info(s.log.WithField(ctx, "status", input.NewStatus.String()), "order status updated")
	return order, nil
}

// Get returns one order to a participant or an admin.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != actor.UserID && order.ProviderID != actor.UserID && actor.Role != RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}
	return order, nil
}

// ListForActor returns the actor's orders, newest first. Clients see their
// purchases, providers their sales, admins both sides of their own account.
func (s *Service) ListForActor(ctx context.Context, actor Actor, limit int) ([]models.Order, error) {
	switch actor.Role {
	case RoleClient:
		results, err := s.repo.ListOrdersByClient(ctx, actor.UserID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing client orders")
		}
		return results, nil
	case RoleProvider:
		results, err := s.repo.ListOrdersByProvider(ctx, actor.UserID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing provider orders")
		}
		return results, nil
	case RoleAdmin:
		bought, err := s.repo.ListOrdersByClient(ctx, actor.UserID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing client orders")
		}
		sold, err := s.repo.ListOrdersByProvider(ctx, actor.UserID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing provider orders")
		}
		return append(bought, sold...), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
}

// ExpireStaleCheckout closes a checkout nobody finished. Unlike
// AbandonPayment it runs without an actor; the sweeper calls it for orders
// past the abandonment window. Orders that moved on since being listed are
// skipped without error.
func (s *Service) ExpireStaleCheckout(ctx context.Context, orderID uuid.UUID) (bool, error) {
	s.locks.Lock(orderID.String())
	defer s.locks.Unlock(orderID.String())

	ctx = s.log.WithOrderID(ctx, orderID.String())

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != enums.OrderStatusPendingPayment && order.Status != enums.OrderStatusPendingConfirmation {
		return false, nil
	}

	// The sweeper runs in its own process, so the keyed lock does not cover
	// the api writers. The expiry write re-checks the status inside the
	// transaction; zero rows means a webhook or the client moved the order
	// after the sweep listed it, and whatever it became wins.
	var expired bool
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.UpdateOrderStatusFrom(ctx, order.ID, []enums.OrderStatus{
			enums.OrderStatusPendingPayment,
			enums.OrderStatusPendingConfirmation,
		}, enums.OrderStatusPaymentFailed)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		expired = true
		if open := order.OpenTransaction(); open != nil {
			open.Status = enums.PaymentStatusFailed
			open.GatewayResponse = models.TruncateGatewayResponse("checkout expired")
			if err := repo.UpdateTransaction(ctx, open); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "expiring checkout")
	}
	if !expired {
		s.log.Info(ctx, "checkout moved on before expiry")
		return false, nil
	}

	s.log.Info(ctx, "stale checkout expired")
	return true, nil
}

// ListStaleCheckouts exposes the sweep query to the cron job.
func (s *Service) ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return s.repo.ListStaleCheckouts(ctx, cutoff, limit)
}

func (s *Service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}
