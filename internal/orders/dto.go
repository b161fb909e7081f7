package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusworks/campusworks-backend/pkg/enums"
)

// Role identifies what hat the acting user wears for a given call.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleClient, RoleProvider, RoleAdmin:
		return Role(value), true
	}
	return "", false
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// CreateOrderInput captures a client's checkout request.
type CreateOrderInput struct {
	ListingID   uuid.UUID
	ClientID    uuid.UUID
	ClientNote  *string
	ScheduledAt *time.Time
}

// InitiatePaymentResult is returned when an intent has been opened and the
// order moved to pending confirmation.
type InitiatePaymentResult struct {
	OrderID      uuid.UUID
	IntentID     string
	ClientSecret string
	Status       enums.OrderStatus
}

// UpdateStatusInput carries a manual provider/admin-driven status change.
type UpdateStatusInput struct {
	OrderID   uuid.UUID
	NewStatus enums.OrderStatus
	Actor     Actor
}

// CancelInput carries a client or provider cancellation request.
type CancelInput struct {
	OrderID uuid.UUID
	Actor   Actor
}

// ReconcileOutcome classifies what a webhook event did to local state.
type ReconcileOutcome string

const (
	// OutcomeApplied means the event moved transaction and/or order state.
	OutcomeApplied ReconcileOutcome = "applied"
	// OutcomeDuplicate means local state already reflected the event.
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	// OutcomeStale means the event arrived after a later state was reached
	// and was skipped to avoid regressing the order.
	OutcomeStale ReconcileOutcome = "stale"
	// OutcomeUnmatched means no transaction or account matched the event.
	OutcomeUnmatched ReconcileOutcome = "unmatched"
	// OutcomeIgnored means the event kind carries nothing to reconcile.
	OutcomeIgnored ReconcileOutcome = "ignored"
)
