package orders

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/internal/payments"
	"github.com/campusworks/campusworks-backend/pkg/config"
	"github.com/campusworks/campusworks-backend/pkg/db/models"
	"github.com/campusworks/campusworks-backend/pkg/enums"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	"github.com/campusworks/campusworks-backend/pkg/logger"
)

type stubRepo struct {
	order              *models.Order
	createdOrder       *models.Order
	createdTx          *models.PaymentTransaction
	updatedTx          *models.PaymentTransaction
	updatedOrderStatus enums.OrderStatus
	statusUpdates      int

	createTransaction     func(ctx context.Context, tx *models.PaymentTransaction) (*models.PaymentTransaction, error)
	updateOrderStatus     func(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	updateOrderStatusFrom func(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (int64, error)
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.createdOrder = order
	return order, nil
}

func (s *stubRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubRepo) FindTransactionByIntentID(ctx context.Context, intentID string) (*models.PaymentTransaction, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range s.order.Transactions {
		if s.order.Transactions[i].StripePaymentIntentID == intentID {
			return &s.order.Transactions[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) CreateTransaction(ctx context.Context, transaction *models.PaymentTransaction) (*models.PaymentTransaction, error) {
	if s.createTransaction != nil {
		return s.createTransaction(ctx, transaction)
	}
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}
	s.createdTx = transaction
	return transaction, nil
}

func (s *stubRepo) UpdateTransaction(ctx context.Context, transaction *models.PaymentTransaction) error {
	s.updatedTx = transaction
	return nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	if s.updateOrderStatus != nil {
		return s.updateOrderStatus(ctx, orderID, status)
	}
	s.updatedOrderStatus = status
	s.statusUpdates++
	if s.order != nil && s.order.ID == orderID {
		s.order.Status = status
	}
	return nil
}

func (s *stubRepo) UpdateOrderStatusFrom(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (int64, error) {
	if s.updateOrderStatusFrom != nil {
		return s.updateOrderStatusFrom(ctx, orderID, from, to)
	}
	if s.order == nil || s.order.ID != orderID {
		return 0, nil
	}
	matched := false
	for _, status := range from {
		if s.order.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return 0, nil
	}
	s.order.Status = to
	s.updatedOrderStatus = to
	s.statusUpdates++
	return 1, nil
}

func (s *stubRepo) ListOrdersByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Order, error) {
	if s.order != nil && s.order.ClientID == clientID {
		return []models.Order{*s.order}, nil
	}
	return nil, nil
}

func (s *stubRepo) ListOrdersByProvider(ctx context.Context, providerID uuid.UUID, limit int) ([]models.Order, error) {
	if s.order != nil && s.order.ProviderID == providerID {
		return []models.Order{*s.order}, nil
	}
	return nil, nil
}

func (s *stubRepo) ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if s.order == nil {
		return nil, nil
	}
	switch s.order.Status {
	case enums.OrderStatusPendingPayment, enums.OrderStatusPendingConfirmation:
		return []models.Order{*s.order}, nil
	}
	return nil, nil
}

type stubListings struct {
	listing *models.Listing
}

func (s *stubListings) FindByID(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	if s.listing == nil || s.listing.ID != listingID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.listing, nil
}

type stubAccounts struct {
	accountID          string
	onboardingComplete bool
	detailsSubmitted   bool
	rows               int64
	err                error
}

func (s *stubAccounts) UpdateReadiness(ctx context.Context, accountID string, onboardingComplete, detailsSubmitted bool) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.accountID = accountID
	s.onboardingComplete = onboardingComplete
	s.detailsSubmitted = detailsSubmitted
	return s.rows, nil
}

type stubGateway struct {
	req    payments.IntentRequest
	result *payments.IntentResult
	err    error
	calls  int
}

func (s *stubGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.IntentResult, error) {
	s.calls++
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &payments.IntentResult{IntentID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testPaymentsConfig() config.PaymentsConfig {
	cfg, err := config.NewPaymentsConfig("0.10", "usd", time.Second)
	if err != nil {
		panic(err)
	}
	return cfg
}

func strptr(s string) *string { return &s }

func readyProvider(id uuid.UUID) *models.User {
	return &models.User{
		ID:                       id,
		StripeConnectedAccountID: strptr("acct_ready"),
		StripeOnboardingComplete: true,
		StripeDetailsSubmitted:   true,
	}
}

func newTestService(t *testing.T, repo *stubRepo, listings *stubListings, accounts *stubAccounts, gateway *stubGateway) *Service {
	t.Helper()
	svc, err := NewService(repo, listings, accounts, gateway, stubTxRunner{}, testLogger(), testPaymentsConfig())
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func pendingOrder(clientID, providerID uuid.UUID) *models.Order {
	listingID := uuid.New()
	return &models.Order{
		ID:           uuid.New(),
		ListingID:    listingID,
		ClientID:     clientID,
		ProviderID:   providerID,
		PriceAtOrder: decimal.RequireFromString("50.00"),
		Currency:     enums.CurrencyUSD,
		Status:       enums.OrderStatusPendingPayment,
		Listing: &models.Listing{
			ID:         listingID,
			ProviderID: providerID,
			Title:      "CS tutoring",
			Price:      decimal.RequireFromString("50.00"),
			IsActive:   true,
			Provider:   readyProvider(providerID),
		},
	}
}

func TestCreateOrderSnapshotsPrice(t *testing.T) {
	providerID := uuid.New()
	clientID := uuid.New()
	listing := &models.Listing{
		ID:         uuid.New(),
		ProviderID: providerID,
		Title:      "CS tutoring",
		Price:      decimal.RequireFromString("50.00"),
		Currency:   enums.CurrencyUSD,
		IsActive:   true,
		Provider:   readyProvider(providerID),
	}
	repo := &stubRepo{}
	svc := newTestService(t, repo, &stubListings{listing: listing}, &stubAccounts{}, &stubGateway{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		ListingID: listing.ID,
		ClientID:  clientID,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("expected pending_payment got %s", order.Status)
	}
	if !order.PriceAtOrder.Equal(listing.Price) {
		t.Fatalf("expected price snapshot %s got %s", listing.Price, order.PriceAtOrder)
	}
	if order.ProviderID != providerID {
		t.Fatalf("provider id not copied from listing")
	}
}

func TestCreateOrderGuards(t *testing.T) {
	providerID := uuid.New()
	base := func() *models.Listing {
		return &models.Listing{
			ID:         uuid.New(),
			ProviderID: providerID,
			Title:      "CS tutoring",
			Price:      decimal.RequireFromString("50.00"),
			IsActive:   true,
			Provider:   readyProvider(providerID),
		}
	}

	t.Run("inactive listing", func(t *testing.T) {
		listing := base()
		listing.IsActive = false
		svc := newTestService(t, &stubRepo{}, &stubListings{listing: listing}, &stubAccounts{}, &stubGateway{})
		_, err := svc.Create(context.Background(), CreateOrderInput{ListingID: listing.ID, ClientID: uuid.New()})
		if !errors.Is(err, ErrListingInactive) {
			t.Fatalf("expected ErrListingInactive got %v", err)
		}
	})

	t.Run("self purchase", func(t *testing.T) {
		listing := base()
		svc := newTestService(t, &stubRepo{}, &stubListings{listing: listing}, &stubAccounts{}, &stubGateway{})
		_, err := svc.Create(context.Background(), CreateOrderInput{ListingID: listing.ID, ClientID: providerID})
		if !errors.Is(err, ErrSelfPurchase) {
			t.Fatalf("expected ErrSelfPurchase got %v", err)
		}
	})

	t.Run("provider not payment ready", func(t *testing.T) {
		listing := base()
		listing.Provider.StripeOnboardingComplete = false
		svc := newTestService(t, &stubRepo{}, &stubListings{listing: listing}, &stubAccounts{}, &stubGateway{})
		_, err := svc.Create(context.Background(), CreateOrderInput{ListingID: listing.ID, ClientID: uuid.New()})
		if !errors.Is(err, ErrProviderNotPaymentReady) {
			t.Fatalf("expected ErrProviderNotPaymentReady got %v", err)
		}
	})

	t.Run("listing not found", func(t *testing.T) {
		svc := newTestService(t, &stubRepo{}, &stubListings{}, &stubAccounts{}, &stubGateway{})
		_, err := svc.Create(context.Background(), CreateOrderInput{ListingID: uuid.New(), ClientID: uuid.New()})
		if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			t.Fatalf("expected not found got %v", err)
		}
	})
}

func TestInitiatePayment(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	repo := &stubRepo{order: order}
	gateway := &stubGateway{}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, gateway)

	result, err := svc.InitiatePayment(context.Background(), order.ID, Actor{UserID: clientID, Role: RoleClient})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.IntentID != "pi_test" || result.ClientSecret != "pi_test_secret" {
		t.Fatalf("unexpected intent result %+v", result)
	}
	if result.Status != enums.OrderStatusPendingConfirmation {
		t.Fatalf("expected pending_confirmation got %s", result.Status)
	}
	if repo.updatedOrderStatus != enums.OrderStatusPendingConfirmation {
		t.Fatalf("order status not persisted, got %s", repo.updatedOrderStatus)
	}
	if repo.createdTx == nil {
		t.Fatal("expected a transaction row")
	}
	if repo.createdTx.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending transaction got %s", repo.createdTx.Status)
	}
	if repo.createdTx.StripePaymentIntentID != "pi_test" {
		t.Fatalf("intent id not persisted, got %s", repo.createdTx.StripePaymentIntentID)
	}

	// Fee declared at 10% of $50.00.
	if !gateway.req.PlatformFee.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected platform fee 5.00 got %s", gateway.req.PlatformFee)
	}
	if gateway.req.DestinationAccountID != "acct_ready" {
		t.Fatalf("unexpected destination %s", gateway.req.DestinationAccountID)
	}
}

func TestInitiatePaymentSecondAttemptRejected(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	order.Status = enums.OrderStatusPendingConfirmation
	order.Transactions = []models.PaymentTransaction{{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: "pi_open",
		Status:                enums.PaymentStatusPending,
	}}
	gateway := &stubGateway{}
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, gateway)

	_, err := svc.InitiatePayment(context.Background(), order.ID, Actor{UserID: clientID, Role: RoleClient})
	if !errors.Is(err, ErrPaymentAlreadyInFlight) {
		t.Fatalf("expected ErrPaymentAlreadyInFlight got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called, got %d calls", gateway.calls)
	}
}

func TestInitiatePaymentRetryAfterFailure(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	order.Status = enums.OrderStatusPaymentFailed
	order.Transactions = []models.PaymentTransaction{{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: "pi_failed",
		Status:                enums.PaymentStatusFailed,
	}}
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	result, err := svc.InitiatePayment(context.Background(), order.ID, Actor{UserID: clientID, Role: RoleClient})
	if err != nil {
		t.Fatalf("expected retry to succeed got %v", err)
	}
	if result.Status != enums.OrderStatusPendingConfirmation {
		t.Fatalf("expected pending_confirmation got %s", result.Status)
	}
}

func TestInitiatePaymentReadinessRevoked(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	order.Listing.Provider.StripeOnboardingComplete = false
	gateway := &stubGateway{}
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, gateway)

	_, err := svc.InitiatePayment(context.Background(), order.ID, Actor{UserID: clientID, Role: RoleClient})
	if !errors.Is(err, ErrProviderNotPaymentReady) {
		t.Fatalf("expected ErrProviderNotPaymentReady got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called, got %d calls", gateway.calls)
	}
}

func TestInitiatePaymentGatewayFailure(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	repo := &stubRepo{order: order}
	gateway := &stubGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "card network down")}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, gateway)

	_, err := svc.InitiatePayment(context.Background(), order.ID, Actor{UserID: clientID, Role: RoleClient})
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error got %v", err)
	}
	if repo.updatedOrderStatus != enums.OrderStatusPaymentFailed {
		t.Fatalf("expected order parked in payment_failed got %s", repo.updatedOrderStatus)
	}
	if repo.createdTx != nil {
		t.Fatal("no transaction row should exist without an intent")
	}
}

func TestInitiatePaymentForbiddenForStranger(t *testing.T) {
	order := pendingOrder(uuid.New(), uuid.New())
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.InitiatePayment(context.Background(), order.ID, Actor{UserID: uuid.New(), Role: RoleClient})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestCancelByClient(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	cancelled, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: clientID, Role: RoleClient},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelledByClient {
		t.Fatalf("expected cancelled_by_client got %s", cancelled.Status)
	}
}

func TestCancelByProvider(t *testing.T) {
	providerID := uuid.New()
	order := pendingOrder(uuid.New(), providerID)
	order.Status = enums.OrderStatusPendingConfirmation
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	cancelled, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: providerID, Role: RoleProvider},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelledByProvider {
		t.Fatalf("expected cancelled_by_provider got %s", cancelled.Status)
	}
}

func TestCancelAfterConfirmationRejected(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	order.Status = enums.OrderStatusConfirmed
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: clientID, Role: RoleClient},
	})
	if !errors.Is(err, ErrCancelAfterConfirmation) {
		t.Fatalf("expected ErrCancelAfterConfirmation got %v", err)
	}
}

func TestCancelByStrangerForbidden(t *testing.T) {
	order := pendingOrder(uuid.New(), uuid.New())
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: uuid.New(), Role: RoleClient},
	})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestAbandonPaymentClosesOpenTransaction(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	order.Status = enums.OrderStatusPendingConfirmation
	order.Transactions = []models.PaymentTransaction{{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: "pi_open",
		Status:                enums.PaymentStatusPending,
	}}
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	abandoned, err := svc.AbandonPayment(context.Background(), order.ID, Actor{UserID: clientID, Role: RoleClient})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if abandoned.Status != enums.OrderStatusPaymentFailed {
		t.Fatalf("expected payment_failed got %s", abandoned.Status)
	}
	if repo.updatedTx == nil || repo.updatedTx.Status != enums.PaymentStatusFailed {
		t.Fatalf("open transaction should be closed as failed, got %+v", repo.updatedTx)
	}
}

func TestUpdateStatusHappyPath(t *testing.T) {
	providerID := uuid.New()
	order := pendingOrder(uuid.New(), providerID)
	order.Status = enums.OrderStatusConfirmed
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusInProgress,
		Actor:     Actor{UserID: providerID, Role: RoleProvider},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Status != enums.OrderStatusInProgress {
		t.Fatalf("expected in_progress got %s", updated.Status)
	}
}

func TestUpdateStatusCompleteBeforePayment(t *testing.T) {
	providerID := uuid.New()
	order := pendingOrder(uuid.New(), providerID)
	order.Status = enums.OrderStatusPendingConfirmation
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCompleted,
		Actor:     Actor{UserID: providerID, Role: RoleProvider},
	})
	if !errors.Is(err, ErrPaymentNotConfirmed) {
		t.Fatalf("expected ErrPaymentNotConfirmed got %v", err)
	}
}

func TestUpdateStatusClientForbidden(t *testing.T) {
	clientID := uuid.New()
	order := pendingOrder(clientID, uuid.New())
	order.Status = enums.OrderStatusConfirmed
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusInProgress,
		Actor:     Actor{UserID: clientID, Role: RoleClient},
	})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
}

func TestUpdateStatusPaymentDrivenEdgeRejected(t *testing.T) {
	providerID := uuid.New()
	order := pendingOrder(uuid.New(), providerID)
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusConfirmed,
		Actor:     Actor{UserID: providerID, Role: RoleProvider},
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition got %v", err)
	}
}

func TestUpdateStatusProviderCancelsBeforeConfirmation(t *testing.T) {
	providerID := uuid.New()
	order := pendingOrder(uuid.New(), providerID)
	order.Status = enums.OrderStatusPendingConfirmation
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCancelledByProvider,
		Actor:     Actor{UserID: providerID, Role: RoleProvider},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Status != enums.OrderStatusCancelledByProvider {
		t.Fatalf("expected cancelled_by_provider got %s", updated.Status)
	}
}

func TestUpdateStatusProviderCannotBlameClient(t *testing.T) {
	providerID := uuid.New()
	order := pendingOrder(uuid.New(), providerID)
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCancelledByClient,
		Actor:     Actor{UserID: providerID, Role: RoleProvider},
	})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
	if repo.statusUpdates != 0 {
		t.Fatalf("no status write expected, got %d", repo.statusUpdates)
	}
}

func TestUpdateStatusAdminRecordsClientCancellation(t *testing.T) {
	order := pendingOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusPaymentFailed
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCancelledByClient,
		Actor:     Actor{UserID: uuid.New(), Role: RoleAdmin},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Status != enums.OrderStatusCancelledByClient {
		t.Fatalf("expected cancelled_by_client got %s", updated.Status)
	}
}

func TestUpdateStatusCancelAfterConfirmationRejected(t *testing.T) {
	providerID := uuid.New()
	order := pendingOrder(uuid.New(), providerID)
	order.Status = enums.OrderStatusConfirmed
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCancelledByProvider,
		Actor:     Actor{UserID: providerID, Role: RoleProvider},
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition got %v", err)
	}
}

func TestExpireStaleCheckout(t *testing.T) {
	order := pendingOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusPendingConfirmation
	order.Transactions = []models.PaymentTransaction{{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: "pi_open",
		Status:                enums.PaymentStatusPending,
	}}
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	expired, err := svc.ExpireStaleCheckout(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !expired {
		t.Fatal("expected the checkout to expire")
	}
	if order.Status != enums.OrderStatusPaymentFailed {
		t.Fatalf("expected payment_failed got %s", order.Status)
	}
	if repo.updatedTx == nil || repo.updatedTx.Status != enums.PaymentStatusFailed {
		t.Fatalf("open transaction should be closed as failed, got %+v", repo.updatedTx)
	}
}

func TestExpireStaleCheckoutSkipsOrderThatMovedOn(t *testing.T) {
	// Between the sweep listing the order and the expiry write, a webhook in
	// the api process can confirm the payment. The conditional write sees zero
	// rows and the sweeper must leave the order alone.
	order := pendingOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusPendingConfirmation
	order.Transactions = []models.PaymentTransaction{{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: "pi_open",
		Status:                enums.PaymentStatusPending,
	}}
	repo := &stubRepo{order: order}
	repo.updateOrderStatusFrom = func(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (int64, error) {
		order.Status = enums.OrderStatusConfirmed
		return 0, nil
	}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	expired, err := svc.ExpireStaleCheckout(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if expired {
		t.Fatal("order that moved on must not be expired")
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("confirmed order regressed to %s", order.Status)
	}
	if repo.updatedTx != nil {
		t.Fatalf("transaction must stay untouched, got %+v", repo.updatedTx)
	}
}

func TestExpireStaleCheckoutAlreadyTerminal(t *testing.T) {
	order := pendingOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusConfirmed
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, &stubListings{}, &stubAccounts{}, &stubGateway{})

	expired, err := svc.ExpireStaleCheckout(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if expired {
		t.Fatal("confirmed order must not be expired")
	}
	if repo.statusUpdates != 0 {
		t.Fatalf("no status write expected, got %d", repo.statusUpdates)
	}
}

func TestGetRestrictedToParticipants(t *testing.T) {
	clientID := uuid.New()
	providerID := uuid.New()
	order := pendingOrder(clientID, providerID)
	svc := newTestService(t, &stubRepo{order: order}, &stubListings{}, &stubAccounts{}, &stubGateway{})

	if _, err := svc.Get(context.Background(), order.ID, Actor{UserID: clientID, Role: RoleClient}); err != nil {
		t.Fatalf("client should see own order: %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, Actor{UserID: providerID, Role: RoleProvider}); err != nil {
		t.Fatalf("provider should see own order: %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, Actor{UserID: uuid.New(), Role: RoleClient}); !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("stranger should be forbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID, Actor{UserID: uuid.New(), Role: RoleAdmin}); err != nil {
		t.Fatalf("admin should see any order: %v", err)
	}
}
