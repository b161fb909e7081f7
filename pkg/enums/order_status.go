package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order from checkout to completion.
type OrderStatus string

const (
	OrderStatusPendingPayment      OrderStatus = "pending_payment"
	OrderStatusPendingConfirmation OrderStatus = "pending_confirmation"
	OrderStatusPaymentProcessing   OrderStatus = "payment_processing"
	OrderStatusConfirmed           OrderStatus = "confirmed"
	OrderStatusInProgress          OrderStatus = "in_progress"
	OrderStatusCompleted           OrderStatus = "completed"
	OrderStatusCancelledByClient   OrderStatus = "cancelled_by_client"
	OrderStatusCancelledByProvider OrderStatus = "cancelled_by_provider"
	OrderStatusPaymentFailed       OrderStatus = "payment_failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPendingConfirmation,
	OrderStatusPaymentProcessing,
	OrderStatusConfirmed,
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusCancelledByClient,
	OrderStatusCancelledByProvider,
	OrderStatusPaymentFailed,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave this status.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCompleted, OrderStatusCancelledByClient, OrderStatusCancelledByProvider:
		return true
	}
	return false
}

// IsCancelled reports whether the order ended in a cancellation branch.
func (o OrderStatus) IsCancelled() bool {
	return o == OrderStatusCancelledByClient || o == OrderStatusCancelledByProvider
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
