package models

import "time"

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusRejected  RefundStatus = "rejected"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundStatusPending: {RefundStatusCompleted, RefundStatusRejected},
}

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundStatusPending, RefundStatusCompleted, RefundStatusRejected:
		return true
	}
	return false
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	return containsStatus(refundTransitions[s], next)
}

type Refund struct {
	ID                   uint                `gorm:"primaryKey" json:"id"`
	PaymentTransactionID uint                `gorm:"not null;index:idx_refunds_payment_transaction_id" json:"payment_transaction_id"`
	PaymentTransaction   *PaymentTransaction `gorm:"foreignKey:PaymentTransactionID;references:ID" json:"payment_transaction,omitempty"`
	InvoiceID            *uint               `gorm:"index:idx_refunds_invoice_id" json:"invoice_id,omitempty"`
	Invoice              *Invoice            `gorm:"foreignKey:InvoiceID;references:ID" json:"invoice,omitempty"`
	Amount               float64             `gorm:"type:decimal(14,2);not null" json:"amount"`
	Reason               string              `gorm:"type:text;not null" json:"reason"`
	Status               RefundStatus        `gorm:"type:varchar(20);not null;default:'pending';index:idx_refunds_status" json:"status"`
	ProcessedAt          *time.Time          `json:"processed_at,omitempty"`
	ProcessedBy          *uint               `json:"processed_by,omitempty"`
	CreatedBy            *uint               `json:"created_by,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func (Refund) TableName() string {
	return "refunds"
}

// RefundFilter represents filter criteria for refund queries
type RefundFilter struct {
	ID                   *uint
	PaymentTransactionID *uint
	InvoiceID            *uint
	Status               *RefundStatus
}
