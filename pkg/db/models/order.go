package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusworks/campusworks-backend/pkg/enums"
)

// Order is a client's locked-price request to purchase a listing.
// PriceAtOrder is snapshotted at creation and never changes afterwards, so
// listing price edits cannot drift an in-flight checkout. Orders are never
// deleted; cancellation is a status.
type Order struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID    uuid.UUID            `gorm:"column:listing_id;type:uuid;not null;index"`
	ClientID     uuid.UUID            `gorm:"column:client_id;type:uuid;not null;index"`
	ProviderID   uuid.UUID            `gorm:"column:provider_id;type:uuid;not null;index"`
	PriceAtOrder decimal.Decimal      `gorm:"column:price_at_order;type:numeric(18,2);not null"`
	Currency     enums.Currency       `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status       enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending_payment';index"`
	ClientNote   *string              `gorm:"column:client_note;size:500"`
	ScheduledAt  *time.Time           `gorm:"column:scheduled_at"`
	Listing      *Listing             `gorm:"foreignKey:ListingID"`
	Transactions []PaymentTransaction `gorm:"foreignKey:OrderID"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OpenTransaction returns the non-terminal transaction for the order, if any.
// The engine enforces at most one.
func (o *Order) OpenTransaction() *PaymentTransaction {
	if o == nil {
		return nil
	}
	for i := range o.Transactions {
		if !o.Transactions[i].Status.IsTerminal() {
			return &o.Transactions[i]
		}
	}
	return nil
}
