package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusworks/campusworks-backend/pkg/enums"
)

// Listing represents a service a provider offers on the marketplace.
type Listing struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID  uuid.UUID       `gorm:"column:provider_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(18,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	Provider    *User           `gorm:"foreignKey:ProviderID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
