package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// PaymentTransactionRepositoryImpl implements PaymentTransactionRepository interface
type PaymentTransactionRepositoryImpl struct {
	*BaseRepository[models.PaymentTransaction, models.PaymentTransactionFilter]
}

func NewPaymentTransactionRepository(db *gorm.DB) PaymentTransactionRepository {
	return &PaymentTransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PaymentTransaction, models.PaymentTransactionFilter](db),
	}
}

func (r *PaymentTransactionRepositoryImpl) applyFilter(db *gorm.DB, filter models.PaymentTransactionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("payment_transactions.id = ?", *filter.ID)
	}
	if filter.CustomerID != nil {
		db = db.Where("payment_transactions.customer_id = ?", *filter.CustomerID)
	}
	if filter.InvoiceID != nil {
		db = db.Where("payment_transactions.invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Status != nil {
		db = db.Where("payment_transactions.status = ?", *filter.Status)
	}
	if filter.PaidAfter != nil {
		db = db.Where("payment_transactions.payment_date >= ?", *filter.PaidAfter)
	}
	if filter.PaidBefore != nil {
		db = db.Where("payment_transactions.payment_date <= ?", *filter.PaidBefore)
	}
	return db
}

func (r *PaymentTransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.PaymentTransactionFilter, orderBy string, limit, offset int) ([]*models.PaymentTransaction, error) {
	var payments []*models.PaymentTransaction
	if err := page(r.applyFilter(r.getDB(ctx), filter), orderBy, limit, offset).Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to find payments by filter: %w", err)
	}
	return payments, nil
}

func (r *PaymentTransactionRepositoryImpl) Count(ctx context.Context, filter models.PaymentTransactionFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.PaymentTransaction{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

// ByReference retrieves a payment by its external reference
func (r *PaymentTransactionRepositoryImpl) ByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := r.getDB(ctx).Where("reference = ?", reference).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment by reference: %w", err)
	}
	return &payment, nil
}

// ListWithDetails lists payments with customer, invoice, method and refunds, newest first
func (r *PaymentTransactionRepositoryImpl) ListWithDetails(ctx context.Context, filter models.PaymentTransactionFilter) ([]*models.PaymentTransaction, error) {
	var payments []*models.PaymentTransaction
	err := r.applyFilter(r.getDB(ctx), filter).
		Preload("Customer").
		Preload("Invoice").
		Preload("PaymentMethod").
		Preload("Refunds").
		Order("payment_transactions.payment_date DESC").
		Order("payment_transactions.id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
