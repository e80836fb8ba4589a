// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// CustomerRepositoryImpl implements CustomerRepository interface
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer, models.CustomerFilter]
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer, models.CustomerFilter](db),
	}
}

func (r *CustomerRepositoryImpl) applyFilter(db *gorm.DB, filter models.CustomerFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("customers.id = ?", *filter.ID)
	}
	if filter.Email != nil {
		db = db.Where("customers.email = ?", *filter.Email)
	}
	if filter.Status != nil {
		db = db.Where("customers.status = ?", *filter.Status)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := "%" + strings.ToLower(*filter.Search) + "%"
		db = db.Where("(LOWER(customers.name) LIKE ? OR LOWER(customers.email) LIKE ? OR LOWER(COALESCE(customers.company, '')) LIKE ?)", like, like, like)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("customers.created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("customers.created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByFilter retrieves customers based on filter criteria
func (r *CustomerRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	var customers []*models.Customer
	err := page(r.applyFilter(r.getDB(ctx), filter), orderBy, limit, offset).Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find customers by filter: %w", err)
	}
	return customers, nil
}

// Count returns the number of customers matching the filter
func (r *CustomerRepositoryImpl) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.Customer{}), filter).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return count, nil
}

// ByEmail retrieves a customer by email address
func (r *CustomerRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Customer, error) {
	customers, err := r.ByFilter(ctx, models.CustomerFilter{Email: &email}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find customer by email: %w", err)
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return customers[0], nil
}

// ListWithSubscriptions lists customers together with their subscriptions and applications
func (r *CustomerRepositoryImpl) ListWithSubscriptions(ctx context.Context, filter models.CustomerFilter) ([]*models.Customer, error) {
	var customers []*models.Customer
	err := r.applyFilter(r.getDB(ctx), filter).
		Preload("Subscriptions", func(db *gorm.DB) *gorm.DB { return db.Order("subscriptions.start_date DESC") }).
		Preload("Subscriptions.Application").
		Order("customers.created_at DESC").
		Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list customers with subscriptions: %w", err)
	}
	return customers, nil
}

// ByIDWithSubscriptions retrieves one customer with subscriptions preloaded
func (r *CustomerRepositoryImpl) ByIDWithSubscriptions(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	err := r.getDB(ctx).
		Preload("Subscriptions").
		Preload("Subscriptions.Application").
		First(&customer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer %d: %w", id, err)
	}
	return &customer, nil
}
