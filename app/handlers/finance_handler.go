package handlers

import (
	"time"

	"github.com/amirphl/backoffice/app/dto"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
)

// FinanceHandlerInterface defines the contract for the finance screen handlers
type FinanceHandlerInterface interface {
	ListInvoices(c fiber.Ctx) error
	GetInvoice(c fiber.Ctx) error
	CreateInvoice(c fiber.Ctx) error
	UpdateInvoiceStatus(c fiber.Ctx) error
	ExportInvoices(c fiber.Ctx) error

	ListPayments(c fiber.Ctx) error
	CreatePayment(c fiber.Ctx) error
	UpdatePaymentStatus(c fiber.Ctx) error
	ExportPayments(c fiber.Ctx) error

	ListRefunds(c fiber.Ctx) error
	CreateRefund(c fiber.Ctx) error
	ProcessRefund(c fiber.Ctx) error

	ListPaymentMethods(c fiber.Ctx) error

	FinancialSummary(c fiber.Ctx) error
	CashFlow(c fiber.Ctx) error
	UpcomingInvoices(c fiber.Ctx) error
}

// FinanceHandler handles invoice, payment, refund and dashboard requests
type FinanceHandler struct {
	baseHandler
	flow businessflow.FinanceFlow
}

// NewFinanceHandler creates a new finance handler
func NewFinanceHandler(flow businessflow.FinanceFlow) FinanceHandlerInterface {
	return &FinanceHandler{baseHandler: newBaseHandler(), flow: flow}
}

func (h *FinanceHandler) invoiceFilter(c fiber.Ctx) (dto.InvoiceFilterRequest, error) {
	var req dto.InvoiceFilterRequest
	var err error
	if req.CustomerID, err = queryUint(c, "customer_id"); err != nil {
		return req, err
	}
	req.Status = queryString(c, "status")
	if req.DueAfter, err = queryTime(c, "due_after"); err != nil {
		return req, err
	}
	if req.DueBefore, err = queryTime(c, "due_before"); err != nil {
		return req, err
	}
	return req, nil
}

func (h *FinanceHandler) paymentFilter(c fiber.Ctx) (dto.PaymentFilterRequest, error) {
	var req dto.PaymentFilterRequest
	var err error
	if req.CustomerID, err = queryUint(c, "customer_id"); err != nil {
		return req, err
	}
	if req.InvoiceID, err = queryUint(c, "invoice_id"); err != nil {
		return req, err
	}
	req.Status = queryString(c, "status")
	return req, nil
}

// ListInvoices lists invoices with customer, application and plan names
// @Summary List Invoices
// @Tags Finance
// @Produce json
// @Param customer_id query int false "Customer ID"
// @Param status query string false "draft|sent|paid|overdue|cancelled"
// @Param due_after query string false "Due date lower bound (RFC3339 or YYYY-MM-DD)"
// @Param due_before query string false "Due date upper bound (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=[]dto.InvoiceDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/finance/invoices [get]
func (h *FinanceHandler) ListInvoices(c fiber.Ctx) error {
	filter, err := h.invoiceFilter(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	invoices, err := h.flow.ListInvoices(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "LIST_INVOICES_FAILED", "Failed to retrieve invoices")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Invoices retrieved successfully", invoices)
}

// GetInvoice returns one invoice with its items
// @Summary Get Invoice
// @Tags Finance
// @Produce json
// @Param id path int true "Invoice ID"
// @Success 200 {object} dto.APIResponse{data=dto.InvoiceDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/finance/invoices/{id} [get]
func (h *FinanceHandler) GetInvoice(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice id", "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	invoice, err := h.flow.GetInvoice(ctx, id)
	if err != nil {
		return h.FlowError(c, err, "GET_INVOICE_FAILED", "Failed to retrieve invoice")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Invoice retrieved successfully", invoice)
}

// CreateInvoice creates an invoice and computes its totals
// @Summary Create Invoice
// @Tags Finance
// @Accept json
// @Produce json
// @Param request body dto.CreateInvoiceRequest true "Invoice"
// @Success 201 {object} dto.APIResponse{data=dto.MutationResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/finance/invoices [post]
func (h *FinanceHandler) CreateInvoice(c fiber.Ctx) error {
	var req dto.CreateInvoiceRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.CreateInvoice(ctx, &req)
	if err != nil {
		return h.FlowError(c, err, "CREATE_INVOICE_FAILED", "Failed to create invoice")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// UpdateInvoiceStatus moves an invoice along its state machine
// @Summary Update Invoice Status
// @Tags Finance
// @Accept json
// @Produce json
// @Param id path int true "Invoice ID"
// @Param request body dto.UpdateInvoiceStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Transition not allowed"
// @Router /api/v1/finance/invoices/{id}/status [put]
func (h *FinanceHandler) UpdateInvoiceStatus(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid invoice id", "VALIDATION_ERROR", nil)
	}
	var req dto.UpdateInvoiceStatusRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.UpdateInvoiceStatus(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "UPDATE_INVOICE_STATUS_FAILED", "Failed to update invoice status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ExportInvoices downloads the filtered invoices as xlsx
// @Summary Export Invoices
// @Tags Finance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /api/v1/finance/invoices/export [get]
func (h *FinanceHandler) ExportInvoices(c fiber.Ctx) error {
	filter, err := h.invoiceFilter(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	file, err := h.flow.ExportInvoices(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "EXPORT_INVOICES_FAILED", "Failed to export invoices")
	}
	return sendExport(c, file)
}

// ListPayments lists payments with refund totals and display status
// @Summary List Payments
// @Tags Finance
// @Produce json
// @Param customer_id query int false "Customer ID"
// @Param invoice_id query int false "Invoice ID"
// @Param status query string false "pending|completed|failed"
// @Success 200 {object} dto.APIResponse{data=[]dto.PaymentDTO}
// @Router /api/v1/finance/payments [get]
func (h *FinanceHandler) ListPayments(c fiber.Ctx) error {
	filter, err := h.paymentFilter(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	payments, err := h.flow.ListPayments(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "LIST_PAYMENTS_FAILED", "Failed to retrieve payments")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Payments retrieved successfully", payments)
}

// CreatePayment records a payment
// @Summary Create Payment
// @Tags Finance
// @Accept json
// @Produce json
// @Param request body dto.CreatePaymentRequest true "Payment"
// @Success 201 {object} dto.APIResponse{data=dto.MutationResponse}
// @Router /api/v1/finance/payments [post]
func (h *FinanceHandler) CreatePayment(c fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.CreatePayment(ctx, &req)
	if err != nil {
		return h.FlowError(c, err, "CREATE_PAYMENT_FAILED", "Failed to record payment")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// UpdatePaymentStatus completes or fails a pending payment
// @Summary Update Payment Status
// @Tags Finance
// @Accept json
// @Produce json
// @Param id path int true "Payment ID"
// @Param request body dto.UpdatePaymentStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/finance/payments/{id}/status [put]
func (h *FinanceHandler) UpdatePaymentStatus(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid payment id", "VALIDATION_ERROR", nil)
	}
	var req dto.UpdatePaymentStatusRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.UpdatePaymentStatus(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "UPDATE_PAYMENT_STATUS_FAILED", "Failed to update payment status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ExportPayments downloads the filtered payments as xlsx
// @Summary Export Payments
// @Tags Finance
// @Router /api/v1/finance/payments/export [get]
func (h *FinanceHandler) ExportPayments(c fiber.Ctx) error {
	filter, err := h.paymentFilter(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	file, err := h.flow.ExportPayments(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "EXPORT_PAYMENTS_FAILED", "Failed to export payments")
	}
	return sendExport(c, file)
}

// ListRefunds lists refunds with payment reference, customer and invoice
// @Summary List Refunds
// @Tags Finance
// @Produce json
// @Param payment_transaction_id query int false "Payment ID"
// @Param status query string false "pending|completed|rejected"
// @Success 200 {object} dto.APIResponse{data=[]dto.RefundDTO}
// @Router /api/v1/finance/refunds [get]
func (h *FinanceHandler) ListRefunds(c fiber.Ctx) error {
	var filter dto.RefundFilterRequest
	var err error
	if filter.PaymentTransactionID, err = queryUint(c, "payment_transaction_id"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}
	filter.Status = queryString(c, "status")

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	refunds, err := h.flow.ListRefunds(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "LIST_REFUNDS_FAILED", "Failed to retrieve refunds")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Refunds retrieved successfully", refunds)
}

// CreateRefund requests a refund against a completed payment
// @Summary Create Refund
// @Tags Finance
// @Accept json
// @Produce json
// @Param request body dto.CreateRefundRequest true "Refund"
// @Success 201 {object} dto.APIResponse{data=dto.MutationResponse}
// @Failure 400 {object} dto.APIResponse "Amount exceeds the refundable balance"
// @Router /api/v1/finance/refunds [post]
func (h *FinanceHandler) CreateRefund(c fiber.Ctx) error {
	var req dto.CreateRefundRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.CreateRefund(ctx, &req)
	if err != nil {
		return h.FlowError(c, err, "CREATE_REFUND_FAILED", "Failed to create refund")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// ProcessRefund completes or rejects a pending refund
// @Summary Process Refund
// @Tags Finance
// @Accept json
// @Produce json
// @Param id path int true "Refund ID"
// @Param request body dto.ProcessRefundRequest true "Decision"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Router /api/v1/finance/refunds/{id}/process [put]
func (h *FinanceHandler) ProcessRefund(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid refund id", "VALIDATION_ERROR", nil)
	}
	var req dto.ProcessRefundRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.ProcessRefund(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "PROCESS_REFUND_FAILED", "Failed to process refund")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ListPaymentMethods lists active payment methods
// @Summary List Payment Methods
// @Tags Finance
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.PaymentMethodDTO}
// @Router /api/v1/finance/payment-methods [get]
func (h *FinanceHandler) ListPaymentMethods(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	methods, err := h.flow.ListPaymentMethods(ctx)
	if err != nil {
		return h.FlowError(c, err, "LIST_PAYMENT_METHODS_FAILED", "Failed to retrieve payment methods")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Payment methods retrieved successfully", methods)
}

// FinancialSummary returns the finance dashboard figures
// @Summary Financial Summary
// @Tags Finance
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.FinancialSummary}
// @Router /api/v1/finance/summary [get]
func (h *FinanceHandler) FinancialSummary(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	summary, err := h.flow.FinancialSummary(ctx)
	if err != nil {
		return h.FlowError(c, err, "FINANCIAL_SUMMARY_FAILED", "Failed to compute financial summary")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Financial summary retrieved successfully", summary)
}

// CashFlow returns income and refunds per month
// @Summary Cash Flow
// @Tags Finance
// @Produce json
// @Param months query int false "Number of months, 1-24"
// @Success 200 {object} dto.APIResponse{data=[]dto.CashFlowMonth}
// @Router /api/v1/finance/cash-flow [get]
func (h *FinanceHandler) CashFlow(c fiber.Ctx) error {
	months, err := queryInt(c, "months", 0, 1, 24)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	flow, err := h.flow.CashFlow(ctx, months)
	if err != nil {
		return h.FlowError(c, err, "CASH_FLOW_FAILED", "Failed to compute cash flow")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Cash flow retrieved successfully", flow)
}

// UpcomingInvoices lists sent invoices falling due soon
// @Summary Upcoming Invoices
// @Tags Finance
// @Produce json
// @Param days query int false "Window in days, 1-90"
// @Success 200 {object} dto.APIResponse{data=[]dto.InvoiceDTO}
// @Router /api/v1/finance/upcoming [get]
func (h *FinanceHandler) UpcomingInvoices(c fiber.Ctx) error {
	days, err := queryInt(c, "days", 0, 1, 90)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	invoices, err := h.flow.UpcomingInvoices(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return h.FlowError(c, err, "UPCOMING_INVOICES_FAILED", "Failed to retrieve upcoming invoices")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Upcoming invoices retrieved successfully", invoices)
}
