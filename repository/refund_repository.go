package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
)

// RefundRepositoryImpl implements RefundRepository interface
type RefundRepositoryImpl struct {
	*BaseRepository[models.Refund, models.RefundFilter]
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &RefundRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Refund, models.RefundFilter](db),
	}
}

func (r *RefundRepositoryImpl) applyFilter(db *gorm.DB, filter models.RefundFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("refunds.id = ?", *filter.ID)
	}
	if filter.PaymentTransactionID != nil {
		db = db.Where("refunds.payment_transaction_id = ?", *filter.PaymentTransactionID)
	}
	if filter.InvoiceID != nil {
		db = db.Where("refunds.invoice_id = ?", *filter.InvoiceID)
	}
	if filter.Status != nil {
		db = db.Where("refunds.status = ?", *filter.Status)
	}
	return db
}

func (r *RefundRepositoryImpl) ByFilter(ctx context.Context, filter models.RefundFilter, orderBy string, limit, offset int) ([]*models.Refund, error) {
	var refunds []*models.Refund
	if err := page(r.applyFilter(r.getDB(ctx), filter), orderBy, limit, offset).Find(&refunds).Error; err != nil {
		return nil, fmt.Errorf("failed to find refunds by filter: %w", err)
	}
	return refunds, nil
}

func (r *RefundRepositoryImpl) Count(ctx context.Context, filter models.RefundFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Refund{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count refunds: %w", err)
	}
	return count, nil
}

// ListWithDetails lists refunds with payment, customer and invoice, newest first
func (r *RefundRepositoryImpl) ListWithDetails(ctx context.Context, filter models.RefundFilter) ([]*models.Refund, error) {
	var refunds []*models.Refund
	err := r.applyFilter(r.getDB(ctx), filter).
		Preload("PaymentTransaction").
		Preload("PaymentTransaction.Customer").
		Preload("Invoice").
		Order("refunds.created_at DESC").
		Order("refunds.id DESC").
		Find(&refunds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

// SumCompletedByPayment totals the completed refunds of one payment
func (r *RefundRepositoryImpl) SumCompletedByPayment(ctx context.Context, paymentID uint) (float64, error) {
	var total float64
	err := r.getDB(ctx).Model(&models.Refund{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payment_transaction_id = ? AND status = ?", paymentID, models.RefundStatusCompleted).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum refunds for payment %d: %w", paymentID, err)
	}
	return total, nil
}
