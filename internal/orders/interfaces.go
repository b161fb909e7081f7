package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/pkg/db/models"
	"github.com/campusworks/campusworks-backend/pkg/enums"
)

// Repository is the ledger contract for orders and their payment
// transactions. Finders fetch related rows eagerly so callers never depend on
// lazy loading; writes inside a transition pair with WithTx so order and
// transaction commit or roll back together.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// FindOrder loads an order with its listing, the listing's provider and
	// all payment transactions.
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// FindTransactionByIntentID resolves the webhook join key, loading the
	// owning order alongside.
	FindTransactionByIntentID(ctx context.Context, intentID string) (*models.PaymentTransaction, error)
	CreateTransaction(ctx context.Context, transaction *models.PaymentTransaction) (*models.PaymentTransaction, error)
	UpdateTransaction(ctx context.Context, transaction *models.PaymentTransaction) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	// UpdateOrderStatusFrom moves the order only while its status is still one
	// of from, reporting how many rows moved. Zero rows means another writer
	// got there first; the keyed lock cannot arbitrate across processes, so
	// the database condition does.
	UpdateOrderStatusFrom(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (int64, error)
	ListOrdersByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Order, error)
	ListOrdersByProvider(ctx context.Context, providerID uuid.UUID, limit int) ([]models.Order, error)
	// ListStaleCheckouts returns orders still waiting on payment whose last
	// touch predates cutoff.
	ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}
