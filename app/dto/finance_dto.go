package dto

import "time"

// InvoiceItemRequest is one billed line of a new invoice
type InvoiceItemRequest struct {
	Description string  `json:"description" validate:"required,min=1,max=500" example:"Pro plan, March"`
	Quantity    float64 `json:"quantity" validate:"gt=0" example:"1"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0" example:"99.00"`
}

// CreateInvoiceRequest represents the request to create an invoice
type CreateInvoiceRequest struct {
	CustomerID     uint                 `json:"customer_id" validate:"required" example:"12"`
	SubscriptionID *uint                `json:"subscription_id,omitempty" validate:"omitempty" example:"3"`
	Items          []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	TaxRate        float64              `json:"tax_rate" validate:"gte=0,lte=100" example:"10"`
	DiscountAmount float64              `json:"discount_amount" validate:"gte=0" example:"0"`
	Currency       string               `json:"currency,omitempty" validate:"omitempty,len=3,alpha" example:"USD"`
	IssueDate      *time.Time           `json:"issue_date,omitempty" example:"2024-03-01T00:00:00Z"`
	DueDate        time.Time            `json:"due_date" validate:"required" example:"2024-03-31T00:00:00Z"`
	Status         string               `json:"status,omitempty" validate:"omitempty,oneof=draft sent" example:"draft"`
	Notes          *string              `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateInvoiceStatusRequest moves an invoice along its state machine
type UpdateInvoiceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent paid overdue cancelled" example:"sent"`
}

// InvoiceFilterRequest carries the invoice list query parameters
type InvoiceFilterRequest struct {
	CustomerID *uint
	Status     *string
	DueAfter   *time.Time
	DueBefore  *time.Time
}

// InvoiceItemDTO is a line of an invoice
type InvoiceItemDTO struct {
	ID          uint    `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// InvoiceDTO is an invoice flattened with its customer, application and plan
type InvoiceDTO struct {
	ID             uint             `json:"id"`
	InvoiceNumber  string           `json:"invoice_number"`
	CustomerID     uint             `json:"customer_id"`
	CustomerName   string           `json:"customer_name"`
	CustomerEmail  string           `json:"customer_email,omitempty"`
	SubscriptionID *uint            `json:"subscription_id,omitempty"`
	AppName        string           `json:"app_name,omitempty"`
	PlanName       string           `json:"plan_name,omitempty"`
	Status         string           `json:"status"`
	Amount         float64          `json:"amount"`
	TaxRate        float64          `json:"tax_rate"`
	TaxAmount      float64          `json:"tax_amount"`
	DiscountAmount float64          `json:"discount_amount"`
	TotalAmount    float64          `json:"total_amount"`
	Currency       string           `json:"currency"`
	IssueDate      time.Time        `json:"issue_date"`
	DueDate        time.Time        `json:"due_date"`
	PaidDate       *time.Time       `json:"paid_date,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	Items          []InvoiceItemDTO `json:"items"`
	CreatedAt      time.Time        `json:"created_at"`
}

// CreatePaymentRequest represents the request to record a payment
type CreatePaymentRequest struct {
	CustomerID      uint       `json:"customer_id" validate:"required" example:"12"`
	InvoiceID       *uint      `json:"invoice_id,omitempty" validate:"omitempty" example:"40"`
	PaymentMethodID *uint      `json:"payment_method_id,omitempty" validate:"omitempty" example:"2"`
	Amount          float64    `json:"amount" validate:"gt=0" example:"110.00"`
	Currency        string     `json:"currency,omitempty" validate:"omitempty,len=3,alpha" example:"USD"`
	Status          string     `json:"status,omitempty" validate:"omitempty,oneof=pending completed failed" example:"completed"`
	PaymentDate     *time.Time `json:"payment_date,omitempty"`
	Notes           *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdatePaymentStatusRequest moves a payment along its state machine
type UpdatePaymentStatusRequest struct {
	Status        string  `json:"status" validate:"required,oneof=pending completed failed" example:"completed"`
	FailureReason *string `json:"failure_reason,omitempty" validate:"omitempty,max=1000"`
}

// PaymentFilterRequest carries the payment list query parameters
type PaymentFilterRequest struct {
	CustomerID *uint
	InvoiceID  *uint
	Status     *string
}

// PaymentDTO is a payment flattened with customer, invoice, method and refund totals
type PaymentDTO struct {
	ID              uint       `json:"id"`
	Reference       string     `json:"reference"`
	CustomerID      uint       `json:"customer_id"`
	CustomerName    string     `json:"customer_name"`
	InvoiceID       *uint      `json:"invoice_id,omitempty"`
	InvoiceNumber   string     `json:"invoice_number,omitempty"`
	PaymentMethodID *uint      `json:"payment_method_id,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	Amount          float64    `json:"amount"`
	RefundedAmount  float64    `json:"refunded_amount"`
	NetAmount       float64    `json:"net_amount"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	DisplayStatus   string     `json:"display_status"`
	PaymentDate     time.Time  `json:"payment_date"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

// CreateRefundRequest represents the request to refund part or all of a payment
type CreateRefundRequest struct {
	PaymentTransactionID uint    `json:"payment_transaction_id" validate:"required" example:"55"`
	Amount               float64 `json:"amount" validate:"gt=0" example:"25.00"`
	Reason               string  `json:"reason" validate:"required,min=1,max=1000" example:"Duplicate charge"`
}

// ProcessRefundRequest completes or rejects a pending refund
type ProcessRefundRequest struct {
	Status string `json:"status" validate:"required,oneof=completed rejected" example:"completed"`
}

// RefundFilterRequest carries the refund list query parameters
type RefundFilterRequest struct {
	PaymentTransactionID *uint
	Status               *string
}

// RefundDTO is a refund flattened with its payment reference, customer and invoice
type RefundDTO struct {
	ID                   uint       `json:"id"`
	PaymentTransactionID uint       `json:"payment_transaction_id"`
	PaymentReference     string     `json:"payment_reference"`
	CustomerName         string     `json:"customer_name"`
	InvoiceID            *uint      `json:"invoice_id,omitempty"`
	InvoiceNumber        string     `json:"invoice_number,omitempty"`
	Amount               float64    `json:"amount"`
	Reason               string     `json:"reason"`
	Status               string     `json:"status"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
	ProcessedBy          *uint      `json:"processed_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// PaymentMethodDTO is an active payment method
type PaymentMethodDTO struct {
	ID          uint    `json:"id"`
	CustomerID  *uint   `json:"customer_id,omitempty"`
	Type        string  `json:"type"`
	Provider    *string `json:"provider,omitempty"`
	LastFour    *string `json:"last_four,omitempty"`
	DisplayName string  `json:"display_name"`
	IsDefault   bool    `json:"is_default"`
}

// MutationResponse reports the id of the row a mutation wrote
type MutationResponse struct {
	ID      uint   `json:"id"`
	Message string `json:"message"`
}

// CashFlowMonth is one calendar month of money in and out
type CashFlowMonth struct {
	Month   string  `json:"month"`
	Income  float64 `json:"income"`
	Refunds float64 `json:"refunds"`
	Net     float64 `json:"net"`
}

// ApplicationRevenue is paid revenue attributed to one application
type ApplicationRevenue struct {
	Application string  `json:"application"`
	Revenue     float64 `json:"revenue"`
	Share       float64 `json:"share"` // percent of total
}

// FinancialSummary is the finance dashboard headline figures
type FinancialSummary struct {
	TotalRevenue            float64              `json:"total_revenue"`
	OutstandingAmount       float64              `json:"outstanding_amount"`
	TotalRefunded           float64              `json:"total_refunded"`
	PaidInvoices            int                  `json:"paid_invoices"`
	OverdueInvoices         int                  `json:"overdue_invoices"`
	PendingInvoices         int                  `json:"pending_invoices"`
	MonthlyRecurringRevenue float64              `json:"monthly_recurring_revenue"`
	AnnualRecurringRevenue  float64              `json:"annual_recurring_revenue"`
	RevenueByMonth          []CashFlowMonth      `json:"revenue_by_month"`
	RevenueByApplication    []ApplicationRevenue `json:"revenue_by_application"`
	Formatted               map[string]string    `json:"formatted,omitempty"`
}

// ExportFile is a generated report ready to download
type ExportFile struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	Rows        int    `json:"rows"`
	ArchivedAt  string `json:"archived_at,omitempty"`
}
