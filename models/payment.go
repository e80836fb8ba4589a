package models

import "time"

// PaymentStatus is the stored status of a payment transaction.
// "refunded" is never stored; it is derived from refund rows.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"

	// PaymentDisplayRefunded is shown for completed payments whose refunds cover the full amount
	PaymentDisplayRefunded = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusCompleted, PaymentStatusFailed},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return containsStatus(paymentTransitions[s], next)
}

// PaymentMethod is a stored way for a customer to pay
type PaymentMethod struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CustomerID  *uint     `gorm:"index:idx_payment_methods_customer_id" json:"customer_id,omitempty"`
	Type        string    `gorm:"size:32;not null" json:"type"` // card, bank_transfer, paypal, ...
	Provider    *string   `gorm:"size:64" json:"provider,omitempty"`
	LastFour    *string   `gorm:"size:4" json:"last_four,omitempty"`
	DisplayName string    `gorm:"size:128;not null" json:"display_name"`
	IsDefault   bool      `gorm:"not null;default:false" json:"is_default"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}

// PaymentTransaction records money received from a customer
type PaymentTransaction struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Reference       string         `gorm:"size:64;not null;uniqueIndex:uk_payment_transactions_reference" json:"reference"`
	CustomerID      uint           `gorm:"not null;index:idx_payment_transactions_customer_id" json:"customer_id"`
	Customer        *Customer      `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	InvoiceID       *uint          `gorm:"index:idx_payment_transactions_invoice_id" json:"invoice_id,omitempty"`
	Invoice         *Invoice       `gorm:"foreignKey:InvoiceID;references:ID" json:"invoice,omitempty"`
	PaymentMethodID *uint          `gorm:"index:idx_payment_transactions_method_id" json:"payment_method_id,omitempty"`
	PaymentMethod   *PaymentMethod `gorm:"foreignKey:PaymentMethodID;references:ID" json:"payment_method,omitempty"`
	Amount          float64        `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency        string         `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Status          PaymentStatus  `gorm:"type:varchar(20);not null;default:'pending';index:idx_payment_transactions_status" json:"status"`
	PaymentDate     time.Time      `gorm:"not null;index:idx_payment_transactions_payment_date" json:"payment_date"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	FailureReason   *string        `gorm:"type:text" json:"failure_reason,omitempty"`
	Notes           *string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Refunds []Refund `gorm:"foreignKey:PaymentTransactionID" json:"refunds,omitempty"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// PaymentTransactionFilter represents filter criteria for payment queries
type PaymentTransactionFilter struct {
	ID         *uint
	CustomerID *uint
	InvoiceID  *uint
	Status     *PaymentStatus
	PaidAfter  *time.Time
	PaidBefore *time.Time
}

// PaymentMethodFilter represents filter criteria for payment method queries
type PaymentMethodFilter struct {
	CustomerID *uint
	Type       *string
	IsActive   *bool
}
