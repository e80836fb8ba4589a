package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// UserRoleRepositoryImpl implements UserRoleRepository interface
type UserRoleRepositoryImpl struct {
	*BaseRepository[models.UserRole, struct{}]
}

func NewUserRoleRepository(db *gorm.DB) UserRoleRepository {
	return &UserRoleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.UserRole, struct{}](db),
	}
}

func (r *UserRoleRepositoryImpl) ByFilter(ctx context.Context, _ struct{}, orderBy string, limit, offset int) ([]*models.UserRole, error) {
	var roles []*models.UserRole
	if err := page(r.getDB(ctx), orderBy, limit, offset).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (r *UserRoleRepositoryImpl) Count(ctx context.Context, _ struct{}) (int64, error) {
	var count int64
	if err := r.getDB(ctx).Model(&models.UserRole{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

func (r *UserRoleRepositoryImpl) ByName(ctx context.Context, name string) (*models.UserRole, error) {
	var role models.UserRole
	err := r.getDB(ctx).Where("name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find role by name: %w", err)
	}
	return &role, nil
}

// ListAll lists roles from most to least privileged
func (r *UserRoleRepositoryImpl) ListAll(ctx context.Context) ([]*models.UserRole, error) {
	return r.ByFilter(ctx, struct{}{}, "level ASC, name ASC", 0, 0)
}
