package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// AuthIdentityRepositoryImpl implements AuthIdentityRepository interface
type AuthIdentityRepositoryImpl struct {
	*BaseRepository[models.AuthIdentity, struct{}]
}

func NewAuthIdentityRepository(db *gorm.DB) AuthIdentityRepository {
	return &AuthIdentityRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuthIdentity, struct{}](db),
	}
}

func (r *AuthIdentityRepositoryImpl) ByFilter(ctx context.Context, _ struct{}, orderBy string, limit, offset int) ([]*models.AuthIdentity, error) {
	var identities []*models.AuthIdentity
	if err := page(r.getDB(ctx), orderBy, limit, offset).Find(&identities).Error; err != nil {
		return nil, fmt.Errorf("failed to list auth identities: %w", err)
	}
	return identities, nil
}

func (r *AuthIdentityRepositoryImpl) Count(ctx context.Context, _ struct{}) (int64, error) {
	var count int64
	if err := r.getDB(ctx).Model(&models.AuthIdentity{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count auth identities: %w", err)
	}
	return count, nil
}

func (r *AuthIdentityRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	err := r.getDB(ctx).Where("email = ?", email).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find auth identity by email: %w", err)
	}
	return &identity, nil
}

// Delete removes an identity. Used only to compensate a failed profile insert.
func (r *AuthIdentityRepositoryImpl) Delete(ctx context.Context, id uint) error {
	if err := r.getDB(ctx).Delete(&models.AuthIdentity{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete auth identity %d: %w", id, err)
	}
	return nil
}
