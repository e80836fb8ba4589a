package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/amirphl/backoffice/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// amountEpsilon absorbs float noise when comparing money against a boundary
const amountEpsilon = 1e-9

// FinanceFlow handles invoices, payments, refunds and the finance dashboard
type FinanceFlow interface {
	ListInvoices(ctx context.Context, filter dto.InvoiceFilterRequest) ([]dto.InvoiceDTO, error)
	GetInvoice(ctx context.Context, id uint) (*dto.InvoiceDTO, error)
	CreateInvoice(ctx context.Context, req *dto.CreateInvoiceRequest) (*dto.MutationResponse, error)
	UpdateInvoiceStatus(ctx context.Context, id uint, req *dto.UpdateInvoiceStatusRequest) (*dto.MutationResponse, error)

	ListPayments(ctx context.Context, filter dto.PaymentFilterRequest) ([]dto.PaymentDTO, error)
	CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*dto.MutationResponse, error)
	UpdatePaymentStatus(ctx context.Context, id uint, req *dto.UpdatePaymentStatusRequest) (*dto.MutationResponse, error)

	ListRefunds(ctx context.Context, filter dto.RefundFilterRequest) ([]dto.RefundDTO, error)
	CreateRefund(ctx context.Context, req *dto.CreateRefundRequest) (*dto.MutationResponse, error)
	ProcessRefund(ctx context.Context, id uint, req *dto.ProcessRefundRequest) (*dto.MutationResponse, error)

	ListPaymentMethods(ctx context.Context) ([]dto.PaymentMethodDTO, error)

	FinancialSummary(ctx context.Context) (*dto.FinancialSummary, error)
	CashFlow(ctx context.Context, months int) ([]dto.CashFlowMonth, error)
	UpcomingInvoices(ctx context.Context, window time.Duration) ([]dto.InvoiceDTO, error)

	ExportInvoices(ctx context.Context, filter dto.InvoiceFilterRequest) (*dto.ExportFile, error)
	ExportPayments(ctx context.Context, filter dto.PaymentFilterRequest) (*dto.ExportFile, error)
}

// FinanceOptions tunes the finance dashboard
type FinanceOptions struct {
	Currency       string
	CashFlowMonths int
	UpcomingWindow time.Duration
	Now            func() time.Time
}

// FinanceFlowImpl implements the finance business flow
type FinanceFlowImpl struct {
	invoiceRepo      repository.InvoiceRepository
	paymentRepo      repository.PaymentTransactionRepository
	refundRepo       repository.RefundRepository
	methodRepo       repository.PaymentMethodRepository
	customerRepo     repository.CustomerRepository
	subscriptionRepo repository.SubscriptionRepository
	sequenceRepo     repository.SequenceCounterRepository
	accessLogger     *services.AccessLogger
	exporter         *exporter
	db               *gorm.DB
	opts             FinanceOptions
}

// NewFinanceFlow creates a new finance flow instance. archiver may be nil.
func NewFinanceFlow(
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentTransactionRepository,
	refundRepo repository.RefundRepository,
	methodRepo repository.PaymentMethodRepository,
	customerRepo repository.CustomerRepository,
	subscriptionRepo repository.SubscriptionRepository,
	sequenceRepo repository.SequenceCounterRepository,
	accessLogger *services.AccessLogger,
	archiver services.ReportArchiver,
	db *gorm.DB,
	opts FinanceOptions,
) FinanceFlow {
	if opts.Currency == "" {
		opts.Currency = utils.DefaultCurrency
	}
	if opts.CashFlowMonths <= 0 {
		opts.CashFlowMonths = DefaultCashFlowMonths
	}
	if opts.UpcomingWindow <= 0 {
		opts.UpcomingWindow = DefaultUpcomingWindow
	}
	if opts.Now == nil {
		opts.Now = utils.UTCNow
	}
	return &FinanceFlowImpl{
		invoiceRepo:      invoiceRepo,
		paymentRepo:      paymentRepo,
		refundRepo:       refundRepo,
		methodRepo:       methodRepo,
		customerRepo:     customerRepo,
		subscriptionRepo: subscriptionRepo,
		sequenceRepo:     sequenceRepo,
		accessLogger:     accessLogger,
		exporter:         &exporter{archiver: archiver, logger: accessLogger, now: opts.Now},
		db:               db,
		opts:             opts,
	}
}

func (f *FinanceFlowImpl) invoiceFilter(req dto.InvoiceFilterRequest) (models.InvoiceFilter, error) {
	filter := models.InvoiceFilter{
		CustomerID: req.CustomerID,
		DueAfter:   req.DueAfter,
		DueBefore:  req.DueBefore,
	}
	if req.Status != nil {
		status := models.InvoiceStatus(*req.Status)
		if !status.Valid() {
			return filter, ErrInvalidStatus
		}
		filter.Status = &status
	}
	if req.DueAfter != nil && req.DueBefore != nil && req.DueAfter.After(*req.DueBefore) {
		return filter, ErrStartDateAfterEndDate
	}
	return filter, nil
}

// ListInvoices lists invoices with customer, application, plan and items flattened
func (f *FinanceFlowImpl) ListInvoices(ctx context.Context, req dto.InvoiceFilterRequest) (result []dto.InvoiceDTO, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_INVOICES_FAILED", "Failed to list invoices", err)
		}
	}()

	filter, err := f.invoiceFilter(req)
	if err != nil {
		return nil, err
	}
	invoices, err := f.invoiceRepo.ListWithDetails(ctx, filter)
	if err != nil {
		return nil, err
	}
	return mapSlice(invoices, ToInvoiceDTO), nil
}

// GetInvoice loads one invoice with its joins
func (f *FinanceFlowImpl) GetInvoice(ctx context.Context, id uint) (result *dto.InvoiceDTO, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_INVOICE_FAILED", "Failed to get invoice", err)
		}
	}()

	invoice, err := f.invoiceRepo.ByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, notFound(ErrInvoiceNotFound, id)
	}
	out := ToInvoiceDTO(invoice)
	return &out, nil
}

func validateInvoiceRequest(req *dto.CreateInvoiceRequest, issue time.Time) error {
	if len(req.Items) == 0 {
		return ErrInvoiceItemsRequired
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Description) == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return ErrInvalidInvoiceItem
		}
	}
	if req.TaxRate < 0 || req.TaxRate > 100 {
		return ErrInvalidTaxRate
	}
	if req.DiscountAmount < 0 {
		return ErrInvalidDiscount
	}
	if _, _, total := InvoiceTotals(req.Items, req.TaxRate, req.DiscountAmount); total < -amountEpsilon {
		return ErrInvalidDiscount
	}
	if req.DueDate.Before(issue) {
		return ErrDueDateBeforeIssueDate
	}
	if req.Status != "" && req.Status != string(models.InvoiceStatusDraft) && req.Status != string(models.InvoiceStatusSent) {
		return ErrInvalidStatus
	}
	return nil
}

// nextInvoiceNumber returns INV-YYYYMM-NNNNNN, sequential within the issue month.
// Each month has its own counter row; a new counter continues after any
// invoices already numbered for that month.
func (f *FinanceFlowImpl) nextInvoiceNumber(ctx context.Context, issue time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", utils.InvoiceNumberPrefix, issue.Format("200601"))
	existing, err := f.invoiceRepo.CountByNumberPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	seq, err := f.sequenceRepo.Next(ctx, "invoice:"+prefix, existing)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%06d", prefix, seq), nil
}

// CreateInvoice validates and stores an invoice with its items.
// total_amount = Σ(quantity*unit_price) + tax - discount.
func (f *FinanceFlowImpl) CreateInvoice(ctx context.Context, req *dto.CreateInvoiceRequest) (result *dto.MutationResponse, err error) {
	var invoice *models.Invoice
	defer func() {
		auditResult(ctx, f.accessLogger, err, "invoice", func() {
			f.accessLogger.LogCreate(ctx, "invoice", services.IDString(invoice.ID), invoice.InvoiceNumber, map[string]any{
				"customer_id":  invoice.CustomerID,
				"total_amount": invoice.TotalAmount,
			})
		})
		if err != nil {
			err = NewBusinessError("CREATE_INVOICE_FAILED", "Failed to create invoice", err)
		}
	}()

	if req.CustomerID == 0 {
		return nil, ErrCustomerNotFound
	}
	issue := f.opts.Now()
	if req.IssueDate != nil {
		issue = req.IssueDate.UTC()
	}
	if err = validateInvoiceRequest(req, issue); err != nil {
		return nil, err
	}

	amount, tax, total := InvoiceTotals(req.Items, req.TaxRate, req.DiscountAmount)
	status := models.InvoiceStatusDraft
	if req.Status != "" {
		status = models.InvoiceStatus(req.Status)
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = f.opts.Currency
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		customer, err := f.customerRepo.ByID(txCtx, req.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return notFound(ErrCustomerNotFound, req.CustomerID)
		}

		if req.SubscriptionID != nil {
			sub, err := f.subscriptionRepo.ByID(txCtx, *req.SubscriptionID)
			if err != nil {
				return err
			}
			if sub == nil || sub.CustomerID != customer.ID {
				return notFound(ErrSubscriptionNotFound, *req.SubscriptionID)
			}
		}

		number, err := f.nextInvoiceNumber(txCtx, issue)
		if err != nil {
			return err
		}

		items := make([]models.InvoiceItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, models.InvoiceItem{
				Description: strings.TrimSpace(item.Description),
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				LineTotal:   item.Quantity * item.UnitPrice,
			})
		}

		invoice = &models.Invoice{
			InvoiceNumber:  number,
			CustomerID:     customer.ID,
			SubscriptionID: req.SubscriptionID,
			Status:         status,
			Amount:         amount,
			TaxRate:        req.TaxRate,
			TaxAmount:      tax,
			DiscountAmount: req.DiscountAmount,
			TotalAmount:    total,
			Currency:       currency,
			IssueDate:      issue,
			DueDate:        req.DueDate.UTC(),
			Notes:          req.Notes,
			CreatedBy:      actorID(ctx),
			Items:          items,
		}
		return f.invoiceRepo.Save(txCtx, invoice)
	})
	if err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: invoice.ID, Message: "Invoice " + invoice.InvoiceNumber + " created"}, nil
}

// UpdateInvoiceStatus applies one transition of the invoice state machine; paid stamps paid_date
func (f *FinanceFlowImpl) UpdateInvoiceStatus(ctx context.Context, id uint, req *dto.UpdateInvoiceStatusRequest) (result *dto.MutationResponse, err error) {
	var from models.InvoiceStatus
	next := models.InvoiceStatus(req.Status)
	defer func() {
		auditResult(ctx, f.accessLogger, err, "invoice", func() {
			f.accessLogger.LogUpdate(ctx, "invoice", services.IDString(id), "", map[string]any{
				"status": map[string]any{"from": from, "to": next},
			})
		})
		if err != nil {
			err = NewBusinessError("UPDATE_INVOICE_STATUS_FAILED", "Failed to update invoice status", err)
		}
	}()

	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		invoice, err := f.invoiceRepo.ByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return notFound(ErrInvoiceNotFound, id)
		}
		from = invoice.Status
		if !from.CanTransitionTo(next) {
			return fmt.Errorf("%w: invoice %s -> %s", ErrInvalidStatusTransition, from, next)
		}

		updates := map[string]any{"status": next}
		if next == models.InvoiceStatusPaid {
			updates["paid_date"] = f.opts.Now()
		}
		return f.invoiceRepo.UpdateColumns(txCtx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: id, Message: "Invoice marked " + string(next)}, nil
}

func paymentFilter(req dto.PaymentFilterRequest) (models.PaymentTransactionFilter, error) {
	filter := models.PaymentTransactionFilter{CustomerID: req.CustomerID, InvoiceID: req.InvoiceID}
	if req.Status != nil {
		status := models.PaymentStatus(*req.Status)
		if !status.Valid() {
			return filter, ErrInvalidStatus
		}
		filter.Status = &status
	}
	return filter, nil
}

// ListPayments lists payments with customer, invoice number, method and refund totals flattened
func (f *FinanceFlowImpl) ListPayments(ctx context.Context, req dto.PaymentFilterRequest) (result []dto.PaymentDTO, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_PAYMENTS_FAILED", "Failed to list payments", err)
		}
	}()

	filter, err := paymentFilter(req)
	if err != nil {
		return nil, err
	}
	payments, err := f.paymentRepo.ListWithDetails(ctx, filter)
	if err != nil {
		return nil, err
	}
	return mapSlice(payments, ToPaymentDTO), nil
}

func newPaymentReference() string {
	return utils.PaymentReferencePrefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

// CreatePayment records a payment. The amount is not checked against the invoice total.
func (f *FinanceFlowImpl) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (result *dto.MutationResponse, err error) {
	var payment *models.PaymentTransaction
	defer func() {
		auditResult(ctx, f.accessLogger, err, "payment", func() {
			f.accessLogger.LogCreate(ctx, "payment", services.IDString(payment.ID), payment.Reference, map[string]any{
				"customer_id": payment.CustomerID,
				"amount":      payment.Amount,
				"status":      payment.Status,
			})
		})
		if err != nil {
			err = NewBusinessError("CREATE_PAYMENT_FAILED", "Failed to create payment", err)
		}
	}()

	if req.CustomerID == 0 {
		return nil, ErrCustomerNotFound
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	status := models.PaymentStatusPending
	if req.Status != "" {
		status = models.PaymentStatus(req.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
	}

	now := f.opts.Now()
	paidAt := now
	if req.PaymentDate != nil {
		paidAt = req.PaymentDate.UTC()
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = f.opts.Currency
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		customer, err := f.customerRepo.ByID(txCtx, req.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return notFound(ErrCustomerNotFound, req.CustomerID)
		}
		if req.InvoiceID != nil {
			invoice, err := f.invoiceRepo.ByID(txCtx, *req.InvoiceID)
			if err != nil {
				return err
			}
			if invoice == nil || invoice.CustomerID != customer.ID {
				return notFound(ErrInvoiceNotFound, *req.InvoiceID)
			}
		}
		if req.PaymentMethodID != nil {
			method, err := f.methodRepo.ByID(txCtx, *req.PaymentMethodID)
			if err != nil {
				return err
			}
			if method == nil || !method.IsActive {
				return notFound(ErrPaymentMethodNotFound, *req.PaymentMethodID)
			}
		}

		payment = &models.PaymentTransaction{
			Reference:       newPaymentReference(),
			CustomerID:      customer.ID,
			InvoiceID:       req.InvoiceID,
			PaymentMethodID: req.PaymentMethodID,
			Amount:          req.Amount,
			Currency:        currency,
			Status:          status,
			PaymentDate:     paidAt,
			Notes:           req.Notes,
		}
		if status != models.PaymentStatusPending {
			payment.ProcessedAt = &now
		}
		return f.paymentRepo.Save(txCtx, payment)
	})
	if err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: payment.ID, Message: "Payment " + payment.Reference + " recorded"}, nil
}

// UpdatePaymentStatus settles a pending payment as completed or failed
func (f *FinanceFlowImpl) UpdatePaymentStatus(ctx context.Context, id uint, req *dto.UpdatePaymentStatusRequest) (result *dto.MutationResponse, err error) {
	var from models.PaymentStatus
	next := models.PaymentStatus(req.Status)
	defer func() {
		auditResult(ctx, f.accessLogger, err, "payment", func() {
			f.accessLogger.LogUpdate(ctx, "payment", services.IDString(id), "", map[string]any{
				"status": map[string]any{"from": from, "to": next},
			})
		})
		if err != nil {
			err = NewBusinessError("UPDATE_PAYMENT_STATUS_FAILED", "Failed to update payment status", err)
		}
	}()

	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		payment, err := f.paymentRepo.ByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return notFound(ErrPaymentNotFound, id)
		}
		from = payment.Status
		if !from.CanTransitionTo(next) {
			return fmt.Errorf("%w: payment %s -> %s", ErrInvalidStatusTransition, from, next)
		}

		updates := map[string]any{"status": next, "processed_at": f.opts.Now()}
		if next == models.PaymentStatusFailed && req.FailureReason != nil {
			updates["failure_reason"] = strings.TrimSpace(*req.FailureReason)
		}
		return f.paymentRepo.UpdateColumns(txCtx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: id, Message: "Payment marked " + string(next)}, nil
}

// ListRefunds lists refunds with payment reference, customer and invoice number flattened
func (f *FinanceFlowImpl) ListRefunds(ctx context.Context, req dto.RefundFilterRequest) (result []dto.RefundDTO, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_REFUNDS_FAILED", "Failed to list refunds", err)
		}
	}()

	filter := models.RefundFilter{PaymentTransactionID: req.PaymentTransactionID}
	if req.Status != nil {
		status := models.RefundStatus(*req.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		filter.Status = &status
	}
	refunds, err := f.refundRepo.ListWithDetails(ctx, filter)
	if err != nil {
		return nil, err
	}
	return mapSlice(refunds, ToRefundDTO), nil
}

// refundable locks the payment row and returns it with its unrefunded balance
func (f *FinanceFlowImpl) refundable(txCtx context.Context, paymentID uint) (*models.PaymentTransaction, float64, error) {
	payment, err := f.paymentRepo.ByIDForUpdate(txCtx, paymentID)
	if err != nil {
		return nil, 0, err
	}
	if payment == nil {
		return nil, 0, notFound(ErrPaymentNotFound, paymentID)
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, 0, ErrPaymentNotCompleted
	}
	refunded, err := f.refundRepo.SumCompletedByPayment(txCtx, paymentID)
	if err != nil {
		return nil, 0, err
	}
	return payment, payment.Amount - refunded, nil
}

// CreateRefund opens a pending refund. The amount may equal but not exceed
// the payment amount less its completed refunds.
func (f *FinanceFlowImpl) CreateRefund(ctx context.Context, req *dto.CreateRefundRequest) (result *dto.MutationResponse, err error) {
	var refund *models.Refund
	defer func() {
		auditResult(ctx, f.accessLogger, err, "refund", func() {
			f.accessLogger.LogCreate(ctx, "refund", services.IDString(refund.ID), "", map[string]any{
				"payment_transaction_id": refund.PaymentTransactionID,
				"amount":                 refund.Amount,
			})
		})
		if err != nil {
			err = NewBusinessError("CREATE_REFUND_FAILED", "Failed to create refund", err)
		}
	}()

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrRefundReasonRequired
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		payment, available, err := f.refundable(txCtx, req.PaymentTransactionID)
		if err != nil {
			return err
		}
		if req.Amount-available > amountEpsilon {
			return fmt.Errorf("%w: requested %.2f, available %.2f", ErrRefundExceedsAvailable, req.Amount, available)
		}

		refund = &models.Refund{
			PaymentTransactionID: payment.ID,
			InvoiceID:            payment.InvoiceID,
			Amount:               req.Amount,
			Reason:               reason,
			Status:               models.RefundStatusPending,
			CreatedBy:            actorID(ctx),
		}
		return f.refundRepo.Save(txCtx, refund)
	})
	if err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: refund.ID, Message: "Refund requested"}, nil
}

// ProcessRefund completes or rejects a pending refund; completion re-checks the refundable balance
func (f *FinanceFlowImpl) ProcessRefund(ctx context.Context, id uint, req *dto.ProcessRefundRequest) (result *dto.MutationResponse, err error) {
	next := models.RefundStatus(req.Status)
	defer func() {
		auditResult(ctx, f.accessLogger, err, "refund", func() {
			if next == models.RefundStatusCompleted {
				f.accessLogger.LogApprove(ctx, "refund", services.IDString(id), "", nil)
			} else {
				f.accessLogger.LogReject(ctx, "refund", services.IDString(id), "", "")
			}
		})
		if err != nil {
			err = NewBusinessError("PROCESS_REFUND_FAILED", "Failed to process refund", err)
		}
	}()

	if next != models.RefundStatusCompleted && next != models.RefundStatusRejected {
		return nil, ErrInvalidStatus
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		refund, err := f.refundRepo.ByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if refund == nil {
			return notFound(ErrRefundNotFound, id)
		}
		if !refund.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: refund %s -> %s", ErrInvalidStatusTransition, refund.Status, next)
		}

		if next == models.RefundStatusCompleted {
			_, available, err := f.refundable(txCtx, refund.PaymentTransactionID)
			if err != nil {
				return err
			}
			if refund.Amount-available > amountEpsilon {
				return fmt.Errorf("%w: refund %.2f, available %.2f", ErrRefundExceedsAvailable, refund.Amount, available)
			}
		}

		updates := map[string]any{"status": next, "processed_at": f.opts.Now()}
		if by := actorID(ctx); by != nil {
			updates["processed_by"] = *by
		}
		return f.refundRepo.UpdateColumns(txCtx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: id, Message: "Refund " + string(next)}, nil
}

// ListPaymentMethods lists active payment methods
func (f *FinanceFlowImpl) ListPaymentMethods(ctx context.Context) ([]dto.PaymentMethodDTO, error) {
	methods, err := f.methodRepo.ListActive(ctx)
	if err != nil {
		return nil, NewBusinessError("LIST_PAYMENT_METHODS_FAILED", "Failed to list payment methods", err)
	}
	return mapSlice(methods, ToPaymentMethodDTO), nil
}

type financeRows struct {
	invoices []*models.Invoice
	payments []*models.PaymentTransaction
	refunds  []*models.Refund
	subs     []*models.Subscription
}

// loadFinanceRows fetches the row sets the dashboard is derived from, concurrently
func (f *FinanceFlowImpl) loadFinanceRows(ctx context.Context, withInvoices, withSubscriptions bool) (*financeRows, error) {
	rows := &financeRows{}
	group, gctx := errgroup.WithContext(ctx)

	if withInvoices {
		group.Go(func() error {
			var err error
			rows.invoices, err = f.invoiceRepo.ListWithDetails(gctx, models.InvoiceFilter{})
			return err
		})
	}
	group.Go(func() error {
		completed := models.PaymentStatusCompleted
		var err error
		rows.payments, err = f.paymentRepo.ByFilter(gctx, models.PaymentTransactionFilter{Status: &completed}, "", 0, 0)
		return err
	})
	group.Go(func() error {
		completed := models.RefundStatusCompleted
		var err error
		rows.refunds, err = f.refundRepo.ByFilter(gctx, models.RefundFilter{Status: &completed}, "", 0, 0)
		return err
	})
	if withSubscriptions {
		group.Go(func() error {
			active := models.SubscriptionStatusActive
			var err error
			rows.subs, err = f.subscriptionRepo.ByFilter(gctx, models.SubscriptionFilter{Status: &active}, "", 0, 0)
			return err
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// FinancialSummary derives the finance dashboard from the current rows
func (f *FinanceFlowImpl) FinancialSummary(ctx context.Context) (*dto.FinancialSummary, error) {
	rows, err := f.loadFinanceRows(ctx, true, true)
	if err != nil {
		return nil, NewBusinessError("FINANCIAL_SUMMARY_FAILED", "Failed to load financial summary", err)
	}
	summary := ComputeFinancialSummary(rows.invoices, rows.payments, rows.refunds, rows.subs, f.opts.Now(), f.opts.CashFlowMonths)
	FormatFinancialSummary(&summary, f.opts.Currency)
	return &summary, nil
}

// CashFlow returns income and refunds for the trailing months
func (f *FinanceFlowImpl) CashFlow(ctx context.Context, months int) ([]dto.CashFlowMonth, error) {
	if months <= 0 {
		months = f.opts.CashFlowMonths
	}
	rows, err := f.loadFinanceRows(ctx, false, false)
	if err != nil {
		return nil, NewBusinessError("CASH_FLOW_FAILED", "Failed to load cash flow", err)
	}
	return CashFlowByMonth(rows.payments, rows.refunds, f.opts.Now(), months), nil
}

// UpcomingInvoices lists sent invoices falling due within window
func (f *FinanceFlowImpl) UpcomingInvoices(ctx context.Context, window time.Duration) ([]dto.InvoiceDTO, error) {
	if window <= 0 {
		window = f.opts.UpcomingWindow
	}
	sent := models.InvoiceStatusSent
	invoices, err := f.invoiceRepo.ListWithDetails(ctx, models.InvoiceFilter{Status: &sent})
	if err != nil {
		return nil, NewBusinessError("UPCOMING_INVOICES_FAILED", "Failed to load upcoming invoices", err)
	}
	return mapSlice(UpcomingDueInvoices(invoices, f.opts.Now(), window), ToInvoiceDTO), nil
}

// ExportInvoices renders the filtered invoice list as xlsx
func (f *FinanceFlowImpl) ExportInvoices(ctx context.Context, req dto.InvoiceFilterRequest) (*dto.ExportFile, error) {
	invoices, err := f.ListInvoices(ctx, req)
	if err != nil {
		return nil, err
	}
	file, err := f.exporter.export(ctx, "invoices", invoiceSheet(invoices))
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return file, nil
}

// ExportPayments renders the filtered payment list as xlsx
func (f *FinanceFlowImpl) ExportPayments(ctx context.Context, req dto.PaymentFilterRequest) (*dto.ExportFile, error) {
	payments, err := f.ListPayments(ctx, req)
	if err != nil {
		return nil, err
	}
	file, err := f.exporter.export(ctx, "payments", paymentSheet(payments))
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return file, nil
}
