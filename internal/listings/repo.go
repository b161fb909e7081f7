package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/pkg/db/models"
)

// Repository is the persistence contract for service listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	// FindByID loads a listing with its provider so payment-readiness checks
	// need no second query.
	FindByID(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
	ListActive(ctx context.Context, limit int) ([]models.Listing, error)
	SetActive(ctx context.Context, listingID uuid.UUID, active bool) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a listings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *repository) FindByID(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Provider").
		Where("id = ?", listingID).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) ListActive(ctx context.Context, limit int) ([]models.Listing, error) {
	var results []models.Listing
	query := r.db.WithContext(ctx).
		Preload("Provider").
		Where("is_active = ?", true).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repository) SetActive(ctx context.Context, listingID uuid.UUID, active bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", listingID).
		Update("is_active", active)
	return result.RowsAffected, result.Error
}
