package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusworks/campusworks-backend/pkg/db/models"
)

// Repository is the persistence contract for marketplace users.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FindByConnectedAccountID(ctx context.Context, accountID string) (*models.User, error)
	// UpdateReadiness flips the Stripe onboarding flags for the user owning the
	// connected account. Returns the number of rows touched so callers can tell
	// an unknown account apart from a no-op.
	UpdateReadiness(ctx context.Context, accountID string, onboardingComplete, detailsSubmitted bool) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *repository) FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByConnectedAccountID(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("stripe_connected_account_id = ?", accountID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdateReadiness(ctx context.Context, accountID string, onboardingComplete, detailsSubmitted bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("stripe_connected_account_id = ?", accountID).
		Updates(map[string]any{
			"stripe_onboarding_complete": onboardingComplete,
			"stripe_details_submitted":   detailsSubmitted,
		})
	return result.RowsAffected, result.Error
}
