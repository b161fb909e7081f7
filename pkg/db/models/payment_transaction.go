package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusworks/campusworks-backend/pkg/enums"
)

// GatewayResponseMaxLen caps the free-form diagnostic text persisted from the
// gateway so oversized payloads cannot blow the column.
const GatewayResponseMaxLen = 5000

// PaymentTransaction records one payment-intent lifecycle for an order. The
// Stripe intent id is unique across all transactions and is the join key for
// every webhook event. Rows are never deleted.
type PaymentTransaction struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	StripePaymentIntentID string              `gorm:"column:stripe_payment_intent_id;size:100;not null;uniqueIndex"`
	Amount                decimal.Decimal     `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency              string              `gorm:"column:currency;size:3;not null;default:'usd'"`
	Status                enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayResponse       *string             `gorm:"column:gateway_response;size:5000"`
	Order                 *Order              `gorm:"foreignKey:OrderID"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TruncateGatewayResponse clips diagnostic text to the persisted cap.
func TruncateGatewayResponse(message string) *string {
	if message == "" {
		return nil
	}
	if len(message) > GatewayResponseMaxLen {
		message = message[:GatewayResponseMaxLen]
	}
	return &message
}
