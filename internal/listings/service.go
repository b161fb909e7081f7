package listings

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/pkg/db/models"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	"github.com/campusworks/campusworks-backend/pkg/logger"
)

// CreateInput captures a provider's new listing.
type CreateInput struct {
	ProviderID  uuid.UUID
	Title       string
	Description *string
	Price       string
	Currency    string
}

// Service exposes listing reads and provider-side management.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService validates dependencies and builds the listings service.
func NewService(repo Repository, log *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("listings repository required")
	}
	if log == nil {
		return nil, errors.New("logger required")
	}
	return &Service{repo: repo, log: log}, nil
}

// Create persists a new active listing after basic input checks.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Listing, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}

	price, err := parsePrice(input.Price)
	if err != nil {
		return nil, err
	}

	currency, err := parseCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	listing := &models.Listing{
		ProviderID:  input.ProviderID,
		Title:       title,
		Description: input.Description,
		Price:       price,
		Currency:    currency,
		IsActive:    true,
	}

	created, err := s.repo.Create(ctx, listing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating listing")
	}

	s.log.Info(s.log.WithField(ctx, "listing_id", created.ID.String()), "listing created")
	return created, nil
}

// Get returns one listing with its provider.
func (s *Service) Get(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listing")
	}
	return listing, nil
}

// ListActive returns browsable listings, newest first.
func (s *Service) ListActive(ctx context.Context, limit int) ([]models.Listing, error) {
	results, err := s.repo.ListActive(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing active listings")
	}
	return results, nil
}

// SetActive toggles a listing's visibility. Only the owning provider may flip it.
func (s *Service) SetActive(ctx context.Context, listingID, providerID uuid.UUID, active bool) error {
	listing, err := s.Get(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.ProviderID != providerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another provider")
	}

	if _, err := s.repo.SetActive(ctx, listingID, active); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating listing visibility")
	}
	return nil
}
