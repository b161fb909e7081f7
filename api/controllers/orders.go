package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusworks/campusworks-backend/api/middleware"
	"github.com/campusworks/campusworks-backend/api/responses"
	"github.com/campusworks/campusworks-backend/api/validators"
	internalorders "github.com/campusworks/campusworks-backend/internal/orders"
	"github.com/campusworks/campusworks-backend/pkg/db/models"
	"github.com/campusworks/campusworks-backend/pkg/enums"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	"github.com/campusworks/campusworks-backend/pkg/logger"
)

const defaultOrderListLimit = 50

type createOrderRequest struct {
	ListingID   string  `json:"listing_id" validate:"required,uuid"`
	ClientNote  *string `json:"client_note,omitempty" validate:"omitempty,max=500"`
	ScheduledAt *string `json:"scheduled_at,omitempty"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderView struct {
	ID           string            `json:"id"`
	ListingID    string            `json:"listing_id"`
	ClientID     string            `json:"client_id"`
	ProviderID   string            `json:"provider_id"`
	PriceAtOrder string            `json:"price_at_order"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	ClientNote   *string           `json:"client_note,omitempty"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
	Transactions []transactionView `json:"transactions,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type transactionView struct {
	ID       string `json:"id"`
	IntentID string `json:"intent_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type initiatePaymentView struct {
	OrderID      string `json:"order_id"`
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

func toOrderView(order *models.Order) orderView {
	view := orderView{
		ID:           order.ID.String(),
		ListingID:    order.ListingID.String(),
		ClientID:     order.ClientID.String(),
		ProviderID:   order.ProviderID.String(),
		PriceAtOrder: order.PriceAtOrder.StringFixed(2),
		Currency:     order.Currency.String(),
		Status:       order.Status.String(),
		ClientNote:   order.ClientNote,
		ScheduledAt:  order.ScheduledAt,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	for i := range order.Transactions {
		tx := &order.Transactions[i]
		view.Transactions = append(view.Transactions, transactionView{
			ID:       tx.ID.String(),
			IntentID: tx.StripePaymentIntentID,
			Amount:   tx.Amount.StringFixed(2),
			Currency: tx.Currency,
			Status:   tx.Status.String(),
		})
	}
	return view
}

// CreateOrder opens a checkout for a listing on behalf of the calling client.
func CreateOrder(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := uuid.Parse(req.ListingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id"))
			return
		}

		var scheduledAt *time.Time
		if req.ScheduledAt != nil {
			parsed, err := time.Parse(time.RFC3339, *req.ScheduledAt)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "scheduled_at must be RFC3339"))
				return
			}
			scheduledAt = &parsed
		}

		order, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			ListingID:   listingID,
			ClientID:    actor.UserID,
			ClientNote:  req.ClientNote,
			ScheduledAt: scheduledAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderView(order))
	}
}

// InitiatePayment opens a payment intent for the order and returns the client
// secret the frontend confirms against the gateway.
func InitiatePayment(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiatePayment(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, initiatePaymentView{
			OrderID:      result.OrderID.String(),
			IntentID:     result.IntentID,
			ClientSecret: result.ClientSecret,
			Status:       result.Status.String(),
		})
	}
}

// CancelOrder ends an order before confirmation.
func CancelOrder(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{OrderID: orderID, Actor: actor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderView(order))
	}
}

// AbandonPayment closes a checkout the client walked away from.
func AbandonPayment(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AbandonPayment(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderView(order))
	}
}

// UpdateOrderStatus applies a provider/admin-driven status change.
func UpdateOrderStatus(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID:   orderID,
			NewStatus: status,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderView(order))
	}
}

// GetOrder returns one order to a participant.
func GetOrder(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderView(order))
	}
}

// ListOrders returns the caller's orders, newest first.
func ListOrders(svc *internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		results, err := svc.ListForActor(r.Context(), actor, defaultOrderListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]orderView, 0, len(results))
		for i := range results {
			views = append(views, toOrderView(&results[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
