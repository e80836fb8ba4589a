package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// PaymentMethodRepositoryImpl implements PaymentMethodRepository interface
type PaymentMethodRepositoryImpl struct {
	*BaseRepository[models.PaymentMethod, models.PaymentMethodFilter]
}

func NewPaymentMethodRepository(db *gorm.DB) PaymentMethodRepository {
	return &PaymentMethodRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PaymentMethod, models.PaymentMethodFilter](db),
	}
}

func (r *PaymentMethodRepositoryImpl) applyFilter(db *gorm.DB, filter models.PaymentMethodFilter) *gorm.DB {
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	return db
}

func (r *PaymentMethodRepositoryImpl) ByFilter(ctx context.Context, filter models.PaymentMethodFilter, orderBy string, limit, offset int) ([]*models.PaymentMethod, error) {
	var methods []*models.PaymentMethod
	if err := page(r.applyFilter(r.getDB(ctx), filter), orderBy, limit, offset).Find(&methods).Error; err != nil {
		return nil, fmt.Errorf("failed to find payment methods by filter: %w", err)
	}
	return methods, nil
}

func (r *PaymentMethodRepositoryImpl) Count(ctx context.Context, filter models.PaymentMethodFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.PaymentMethod{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count payment methods: %w", err)
	}
	return count, nil
}

// ListActive lists active payment methods, defaults first
func (r *PaymentMethodRepositoryImpl) ListActive(ctx context.Context) ([]*models.PaymentMethod, error) {
	active := true
	return r.ByFilter(ctx, models.PaymentMethodFilter{IsActive: &active}, "is_default DESC, display_name ASC", 0, 0)
}
