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
	internallistings "github.com/campusworks/campusworks-backend/internal/listings"
	internalorders "github.com/campusworks/campusworks-backend/internal/orders"
	"github.com/campusworks/campusworks-backend/pkg/db/models"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	"github.com/campusworks/campusworks-backend/pkg/logger"
)

const defaultListingListLimit = 100

type createListingRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       string  `json:"price" validate:"required"`
	Currency    string  `json:"currency,omitempty"`
}

type setListingActiveRequest struct {
	Active bool `json:"active"`
}

type listingView struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"provider_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toListingView(listing *models.Listing) listingView {
	return listingView{
		ID:          listing.ID.String(),
		ProviderID:  listing.ProviderID.String(),
		Title:       listing.Title,
		Description: listing.Description,
		Price:       listing.Price.StringFixed(2),
		Currency:    listing.Currency.String(),
		IsActive:    listing.IsActive,
		CreatedAt:   listing.CreatedAt,
	}
}

// CreateListing publishes a new service listing for the calling provider.
func CreateListing(svc *internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}
		if actor.Role == internalorders.RoleClient {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only providers can publish listings"))
			return
		}

		var req createListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), internallistings.CreateInput{
			ProviderID:  actor.UserID,
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Currency:    req.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toListingView(listing))
	}
}

// GetListing returns one listing.
func GetListing(svc *internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := parseListingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Get(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toListingView(listing))
	}
}

// ListListings returns browsable active listings.
func ListListings(svc *internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.ListActive(r.Context(), defaultListingListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]listingView, 0, len(results))
		for i := range results {
			views = append(views, toListingView(&results[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

// SetListingActive toggles a listing's visibility.
func SetListingActive(svc *internallistings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		listingID, err := parseListingID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setListingActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetActive(r.Context(), listingID, actor.UserID, req.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"active": req.Active})
	}
}

func parseListingID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "listingId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	listingID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id")
	}
	return listingID, nil
}
