package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// SubscriptionRepositoryImpl implements SubscriptionRepository interface
type SubscriptionRepositoryImpl struct {
	*BaseRepository[models.Subscription, models.SubscriptionFilter]
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Subscription, models.SubscriptionFilter](db),
	}
}

func (r *SubscriptionRepositoryImpl) applyFilter(db *gorm.DB, filter models.SubscriptionFilter) *gorm.DB {
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ApplicationID != nil {
		db = db.Where("application_id = ?", *filter.ApplicationID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}

func (r *SubscriptionRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriptionFilter, orderBy string, limit, offset int) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := page(r.applyFilter(r.getDB(ctx), filter), orderBy, limit, offset).
		Preload("Application").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriptions by filter: %w", err)
	}
	return subs, nil
}

func (r *SubscriptionRepositoryImpl) Count(ctx context.Context, filter models.SubscriptionFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Subscription{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

// ListByCustomer lists a customer's subscriptions, newest first
func (r *SubscriptionRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint) ([]*models.Subscription, error) {
	return r.ByFilter(ctx, models.SubscriptionFilter{CustomerID: &customerID}, "start_date DESC", 0, 0)
}
