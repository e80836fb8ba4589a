package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// UserProfileRepositoryImpl implements UserProfileRepository interface
type UserProfileRepositoryImpl struct {
	*BaseRepository[models.UserProfile, models.UserProfileFilter]
}

func NewUserProfileRepository(db *gorm.DB) UserProfileRepository {
	return &UserProfileRepositoryImpl{
		BaseRepository: NewBaseRepository[models.UserProfile, models.UserProfileFilter](db),
	}
}

func (r *UserProfileRepositoryImpl) applyFilter(db *gorm.DB, filter models.UserProfileFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("user_profiles.id = ?", *filter.ID)
	}
	if filter.AuthIdentityID != nil {
		db = db.Where("user_profiles.auth_identity_id = ?", *filter.AuthIdentityID)
	}
	if filter.Email != nil {
		db = db.Where("user_profiles.email = ?", *filter.Email)
	}
	if filter.RoleID != nil {
		db = db.Where("user_profiles.role_id = ?", *filter.RoleID)
	}
	if filter.Status != nil {
		db = db.Where("user_profiles.status = ?", *filter.Status)
	}
	return db
}

func (r *UserProfileRepositoryImpl) ByFilter(ctx context.Context, filter models.UserProfileFilter, orderBy string, limit, offset int) ([]*models.UserProfile, error) {
	var profiles []*models.UserProfile
	if err := page(r.applyFilter(r.getDB(ctx), filter), orderBy, limit, offset).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to find user profiles by filter: %w", err)
	}
	return profiles, nil
}

func (r *UserProfileRepositoryImpl) Count(ctx context.Context, filter models.UserProfileFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.UserProfile{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count user profiles: %w", err)
	}
	return count, nil
}

func (r *UserProfileRepositoryImpl) first(ctx context.Context, filter models.UserProfileFilter) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.applyFilter(r.getDB(ctx), filter).Preload("Role").First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *UserProfileRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	profile, err := r.first(ctx, models.UserProfileFilter{Email: &email})
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile by email: %w", err)
	}
	return profile, nil
}

func (r *UserProfileRepositoryImpl) ByAuthIdentityID(ctx context.Context, authIdentityID uint) (*models.UserProfile, error) {
	profile, err := r.first(ctx, models.UserProfileFilter{AuthIdentityID: &authIdentityID})
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile by identity: %w", err)
	}
	return profile, nil
}

func (r *UserProfileRepositoryImpl) ByIDWithRole(ctx context.Context, id uint) (*models.UserProfile, error) {
	profile, err := r.first(ctx, models.UserProfileFilter{ID: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile %d: %w", id, err)
	}
	return profile, nil
}

// ListWithRole lists profiles with their role joined, newest first
func (r *UserProfileRepositoryImpl) ListWithRole(ctx context.Context, filter models.UserProfileFilter) ([]*models.UserProfile, error) {
	var profiles []*models.UserProfile
	err := r.applyFilter(r.getDB(ctx), filter).
		Preload("Role").
		Order("user_profiles.created_at DESC").
		Order("user_profiles.id DESC").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user profiles: %w", err)
	}
	return profiles, nil
}
