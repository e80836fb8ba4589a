package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// InvoiceRepositoryImpl implements InvoiceRepository interface
type InvoiceRepositoryImpl struct {
	*BaseRepository[models.Invoice, models.InvoiceFilter]
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &InvoiceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Invoice, models.InvoiceFilter](db),
	}
}

func (r *InvoiceRepositoryImpl) applyFilter(db *gorm.DB, filter models.InvoiceFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("invoices.id = ?", *filter.ID)
	}
	if filter.CustomerID != nil {
		db = db.Where("invoices.customer_id = ?", *filter.CustomerID)
	}
	if filter.SubscriptionID != nil {
		db = db.Where("invoices.subscription_id = ?", *filter.SubscriptionID)
	}
	if filter.Status != nil {
		db = db.Where("invoices.status = ?", *filter.Status)
	}
	if filter.InvoiceNumber != nil {
		db = db.Where("invoices.invoice_number = ?", *filter.InvoiceNumber)
	}
	if filter.DueAfter != nil {
		db = db.Where("invoices.due_date >= ?", *filter.DueAfter)
	}
	if filter.DueBefore != nil {
		db = db.Where("invoices.due_date <= ?", *filter.DueBefore)
	}
	if filter.IssuedAfter != nil {
		db = db.Where("invoices.issue_date >= ?", *filter.IssuedAfter)
	}
	if filter.IssuedBefore != nil {
		db = db.Where("invoices.issue_date <= ?", *filter.IssuedBefore)
	}
	return db
}

func withInvoiceDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Customer").
		Preload("Subscription").
		Preload("Subscription.Application").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_items.id ASC") })
}

func (r *InvoiceRepositoryImpl) ByFilter(ctx context.Context, filter models.InvoiceFilter, orderBy string, limit, offset int) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	if err := page(r.applyFilter(r.getDB(ctx), filter), orderBy, limit, offset).Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to find invoices by filter: %w", err)
	}
	return invoices, nil
}

func (r *InvoiceRepositoryImpl) Count(ctx context.Context, filter models.InvoiceFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Invoice{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

// ByIDWithDetails loads an invoice with customer, subscription, application and items
func (r *InvoiceRepositoryImpl) ByIDWithDetails(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := withInvoiceDetails(r.getDB(ctx)).First(&invoice, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find invoice %d: %w", id, err)
	}
	return &invoice, nil
}

// ListWithDetails lists invoices with their joins, newest issue date first
func (r *InvoiceRepositoryImpl) ListWithDetails(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	err := withInvoiceDetails(r.applyFilter(r.getDB(ctx), filter)).
		Order("invoices.issue_date DESC").
		Order("invoices.id DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// CountByNumberPrefix counts invoices whose number starts with prefix
func (r *InvoiceRepositoryImpl) CountByNumberPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices with prefix %s: %w", prefix, err)
	}
	return count, nil
}
