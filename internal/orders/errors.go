package orders

import (
	"github.com/campusworks/campusworks-backend/pkg/enums"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
)

// Guard and transition failures surfaced to callers. Each maps onto the
// shared error taxonomy so the HTTP layer can pick status codes without
// knowing order semantics.
var (
	ErrListingInactive = pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not active")

	ErrSelfPurchase = pkgerrors.New(pkgerrors.CodeValidation, "cannot order your own listing")

	ErrProviderNotPaymentReady = pkgerrors.New(pkgerrors.CodeStateConflict, "provider is not set up to receive payments")

	ErrPaymentAlreadyInFlight = pkgerrors.New(pkgerrors.CodeConflict, "a payment for this order is already in flight")

	ErrPaymentNotConfirmed = pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be completed before payment is confirmed")

	ErrInvalidTransition = pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed")

	ErrCancelAfterConfirmation = pkgerrors.New(pkgerrors.CodeStateConflict, "confirmed orders must be cancelled through a refund")

	ErrOrderMovedConcurrently = pkgerrors.New(pkgerrors.CodeConflict, "order was modified by another writer")
)

// invalidTransition wraps ErrInvalidTransition with the attempted edge so the
// response can name it, without mutating the shared sentinel.
func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrInvalidTransition, "status transition not allowed").
		WithDetails(map[string]string{
			"from": from.String(),
			"to":   to.String(),
		})
}
