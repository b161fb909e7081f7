package orders

import (
	"github.com/campusworks/campusworks-backend/pkg/enums"
)

// statusSet is a membership set over order statuses.
type statusSet map[enums.OrderStatus]struct{}

func setOf(statuses ...enums.OrderStatus) statusSet {
	set := make(statusSet, len(statuses))
	for _, status := range statuses {
		set[status] = struct{}{}
	}
	return set
}

func (s statusSet) contains(status enums.OrderStatus) bool {
	_, ok := s[status]
	return ok
}

// allowedTransitions is the full transition table for order statuses. Legality
// is decided by membership here, never by comparing positions in the enum
// declaration: cancellation and failure states are not "later" than completed
// even though they are declared after it.
var allowedTransitions = map[enums.OrderStatus]statusSet{
	enums.OrderStatusPendingPayment: setOf(
		enums.OrderStatusPendingConfirmation,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
	enums.OrderStatusPendingConfirmation: setOf(
		enums.OrderStatusPaymentProcessing,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
	enums.OrderStatusPaymentProcessing: setOf(
		enums.OrderStatusConfirmed,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
	enums.OrderStatusConfirmed: setOf(
		enums.OrderStatusInProgress,
		enums.OrderStatusCompleted,
	),
	enums.OrderStatusInProgress: setOf(
		enums.OrderStatusCompleted,
	),
	enums.OrderStatusCompleted:           setOf(),
	enums.OrderStatusCancelledByClient:   setOf(),
	enums.OrderStatusCancelledByProvider: setOf(),
	enums.OrderStatusPaymentFailed: setOf(
		enums.OrderStatusPendingConfirmation,
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return targets.contains(to)
}

// manualTransitions is the subset a provider or admin may drive by hand:
// forward along the happy path once payment is confirmed, or into a
// cancellation branch while the order is still cancellable. Payment-driven
// statuses only move through the gateway.
var manualTransitions = map[enums.OrderStatus]statusSet{
	enums.OrderStatusPendingPayment: setOf(
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
	enums.OrderStatusPendingConfirmation: setOf(
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
	enums.OrderStatusPaymentProcessing: setOf(
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
	enums.OrderStatusPaymentFailed: setOf(
		enums.OrderStatusCancelledByClient,
		enums.OrderStatusCancelledByProvider,
	),
	enums.OrderStatusConfirmed: setOf(
		enums.OrderStatusInProgress,
		enums.OrderStatusCompleted,
	),
	enums.OrderStatusInProgress: setOf(
		enums.OrderStatusCompleted,
	),
}

// CanTransitionManually reports whether a human-driven status change is legal.
func CanTransitionManually(from, to enums.OrderStatus) bool {
	targets, ok := manualTransitions[from]
	if !ok {
		return false
	}
	return targets.contains(to)
}

// cancellableStatuses are the states in which a direct cancellation is still
// possible. From confirmed onward money has moved and cancellation must route
// through a refund instead.
var cancellableStatuses = setOf(
	enums.OrderStatusPendingPayment,
	enums.OrderStatusPendingConfirmation,
	enums.OrderStatusPaymentProcessing,
	enums.OrderStatusPaymentFailed,
)

// CanCancel reports whether the order may be cancelled directly.
func CanCancel(from enums.OrderStatus) bool {
	return cancellableStatuses.contains(from)
}

// initiableStatuses are the states from which a new payment intent may be
// opened: the initial state and a failed attempt being retried.
var initiableStatuses = setOf(
	enums.OrderStatusPendingPayment,
	enums.OrderStatusPaymentFailed,
)

// CanInitiatePayment reports whether a payment attempt may start.
func CanInitiatePayment(from enums.OrderStatus) bool {
	return initiableStatuses.contains(from)
}
