package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. Providers additionally carry
// Stripe Connect onboarding state, which gates their ability to receive payments.
type User struct {
	ID                       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email                    string     `gorm:"type:text;not null;uniqueIndex"`
	DisplayName              string     `gorm:"column:display_name;not null"`
	IsActive                 bool       `gorm:"column:is_active;not null;default:true"`
	StripeConnectedAccountID *string    `gorm:"column:stripe_connected_account_id;uniqueIndex"`
	StripeOnboardingComplete bool       `gorm:"column:stripe_onboarding_complete;not null;default:false"`
	StripeDetailsSubmitted   bool       `gorm:"column:stripe_details_submitted;not null;default:false"`
	LastLoginAt              *time.Time `gorm:"column:last_login_at"`
	CreatedAt                time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentReady reports whether the user can be the destination of a
// destination-charge split. Both flags are required before any intent is opened.
func (u *User) PaymentReady() bool {
	if u == nil {
		return false
	}
	return u.StripeConnectedAccountID != nil && *u.StripeConnectedAccountID != "" && u.StripeOnboardingComplete
}
