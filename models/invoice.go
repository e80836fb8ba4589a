package models

import (
	"time"
)

// InvoiceStatus represents the lifecycle of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

// Valid reports whether s is a known invoice status
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an invoice may move from s to next.
// paid and cancelled are terminal.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return containsStatus(invoiceTransitions[s], next)
}

// IsTerminal reports whether no transition leaves s
func (s InvoiceStatus) IsTerminal() bool {
	return len(invoiceTransitions[s]) == 0
}

type Invoice struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	InvoiceNumber  string        `gorm:"size:32;not null;uniqueIndex:uk_invoices_number" json:"invoice_number"`
	CustomerID     uint          `gorm:"not null;index:idx_invoices_customer_id" json:"customer_id"`
	Customer       *Customer     `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	SubscriptionID *uint         `gorm:"index:idx_invoices_subscription_id" json:"subscription_id,omitempty"`
	Subscription   *Subscription `gorm:"foreignKey:SubscriptionID;references:ID" json:"subscription,omitempty"`
	Status         InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_invoices_status" json:"status"`
	Amount         float64       `gorm:"type:decimal(14,2);not null;default:0" json:"amount"`
	TaxRate        float64       `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount      float64       `gorm:"type:decimal(14,2);not null;default:0" json:"tax_amount"`
	DiscountAmount float64       `gorm:"type:decimal(14,2);not null;default:0" json:"discount_amount"`
	TotalAmount    float64       `gorm:"type:decimal(14,2);not null;default:0" json:"total_amount"`
	Currency       string        `gorm:"size:3;not null;default:'USD'" json:"currency"`
	IssueDate      time.Time     `gorm:"not null;index:idx_invoices_issue_date" json:"issue_date"`
	DueDate        time.Time     `gorm:"not null;index:idx_invoices_due_date" json:"due_date"`
	PaidDate       *time.Time    `json:"paid_date,omitempty"`
	Notes          *string       `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy      *uint         `json:"created_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceFilter represents filter criteria for invoice queries
type InvoiceFilter struct {
	ID             *uint
	CustomerID     *uint
	SubscriptionID *uint
	Status         *InvoiceStatus
	InvoiceNumber  *string
	DueAfter       *time.Time
	DueBefore      *time.Time
	IssuedAfter    *time.Time
	IssuedBefore   *time.Time
}

// InvoiceItem is one billed line of an invoice
type InvoiceItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	InvoiceID   uint      `gorm:"not null;index:idx_invoice_items_invoice_id" json:"invoice_id"`
	Description string    `gorm:"size:500;not null" json:"description"`
	Quantity    float64   `gorm:"type:decimal(12,2);not null" json:"quantity"`
	UnitPrice   float64   `gorm:"type:decimal(14,2);not null" json:"unit_price"`
	LineTotal   float64   `gorm:"type:decimal(14,2);not null" json:"line_total"`
	CreatedAt   time.Time `json:"created_at"`
}

func (InvoiceItem) TableName() string {
	return "invoice_items"
}

func containsStatus[S ~string](list []S, s S) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
