package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/pkg/db/models"
	"github.com/campusworks/campusworks-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Listing.Provider").
		Preload("Transactions").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindTransactionByIntentID(ctx context.Context, intentID string) (*models.PaymentTransaction, error) {
	var transaction models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Preload("Order").
		Where("stripe_payment_intent_id = ?", intentID).
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) CreateTransaction(ctx context.Context, transaction *models.PaymentTransaction) (*models.PaymentTransaction, error) {
	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return nil, err
	}
	return transaction, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, transaction *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", transaction.ID).
		Updates(map[string]any{
			"status":           transaction.Status,
			"gateway_response": transaction.GatewayResponse,
		}).Error
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) UpdateOrderStatusFrom(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *repository) ListOrdersByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Order, error) {
	return r.listOrders(ctx, "client_id = ?", clientID, limit)
}

func (r *repository) ListOrdersByProvider(ctx context.Context, providerID uuid.UUID, limit int) ([]models.Order, error) {
	return r.listOrders(ctx, "provider_id = ?", providerID, limit)
}

func (r *repository) ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Preload("Transactions").
		Where("status IN ?", []enums.OrderStatus{
			enums.OrderStatusPendingPayment,
			enums.OrderStatusPendingConfirmation,
		}).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) listOrders(ctx context.Context, where string, id uuid.UUID, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Transactions").
		Where(where, id).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
