package businessflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	testhelpers "github.com/amirphl/backoffice/testing"
	"github.com/amirphl/backoffice/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var financeNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type stubArchiver struct {
	calls int
	err   error
}

func (a *stubArchiver) Archive(_ context.Context, fileName, _ string, _ []byte) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return "s3://reports/" + fileName, nil
}

type financeEnv struct {
	db       *testhelpers.TestDB
	fixtures *testhelpers.TestFixtures
	flow     FinanceFlow
}

func newFinanceEnv(t *testing.T, archiver services.ReportArchiver) *financeEnv {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	flow := NewFinanceFlow(
		repository.NewInvoiceRepository(db.DB),
		repository.NewPaymentTransactionRepository(db.DB),
		repository.NewRefundRepository(db.DB),
		repository.NewPaymentMethodRepository(db.DB),
		repository.NewCustomerRepository(db.DB),
		repository.NewSubscriptionRepository(db.DB),
		repository.NewSequenceCounterRepository(db.DB),
		nil,
		archiver,
		db.DB,
		FinanceOptions{Now: func() time.Time { return financeNow }},
	)
	return &financeEnv{db: db, fixtures: testhelpers.NewTestFixtures(t, db), flow: flow}
}

func invoiceRequest(customerID uint) *dto.CreateInvoiceRequest {
	return &dto.CreateInvoiceRequest{
		CustomerID: customerID,
		Items: []dto.InvoiceItemRequest{
			{Description: "Seats", Quantity: 2, UnitPrice: 50},
			{Description: "Support", Quantity: 1, UnitPrice: 100},
		},
		TaxRate:        10,
		DiscountAmount: 5,
		DueDate:        financeNow.AddDate(0, 0, 30),
	}
}

func TestFinanceFlow_CreateInvoice(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)

	t.Run("stores totals and items", func(t *testing.T) {
		res, err := env.flow.CreateInvoice(ctx, invoiceRequest(customer.ID))
		require.NoError(t, err)

		invoice, err := env.flow.GetInvoice(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-202603-000001", invoice.InvoiceNumber)
		assert.Equal(t, string(models.InvoiceStatusDraft), invoice.Status)
		assert.InDelta(t, 200, invoice.Amount, 1e-9)
		assert.InDelta(t, 20, invoice.TaxAmount, 1e-9)
		assert.InDelta(t, 215, invoice.TotalAmount, 1e-9)
		assert.Equal(t, utils.DefaultCurrency, invoice.Currency)
		assert.Len(t, invoice.Items, 2)
		assert.InDelta(t,
			invoice.Amount+invoice.TaxAmount-invoice.DiscountAmount,
			invoice.TotalAmount, 1e-9)
	})

	t.Run("numbers are sequential within the month", func(t *testing.T) {
		res, err := env.flow.CreateInvoice(ctx, invoiceRequest(customer.ID))
		require.NoError(t, err)
		invoice, err := env.flow.GetInvoice(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-202603-000002", invoice.InvoiceNumber)
	})

	t.Run("concurrent creates get distinct numbers", func(t *testing.T) {
		const workers = 8
		ids := make(chan uint, workers)
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := env.flow.CreateInvoice(ctx, invoiceRequest(customer.ID))
				if assert.NoError(t, err) {
					ids <- res.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		numbers := make(map[string]bool, workers)
		for id := range ids {
			invoice, err := env.flow.GetInvoice(ctx, id)
			require.NoError(t, err)
			numbers[invoice.InvoiceNumber] = true
		}
		assert.Len(t, numbers, workers)
		for i := 3; i < 3+workers; i++ {
			assert.True(t, numbers[fmt.Sprintf("INV-202603-%06d", i)], "missing number %d", i)
		}
	})

	t.Run("rejects tax rate above 100", func(t *testing.T) {
		req := invoiceRequest(customer.ID)
		req.TaxRate = 150
		_, err := env.flow.CreateInvoice(ctx, req)
		require.Error(t, err)
		assert.True(t, IsInvalidTaxRate(err))
		assert.True(t, IsValidationError(err))
	})

	t.Run("rejects due date before issue date", func(t *testing.T) {
		req := invoiceRequest(customer.ID)
		req.DueDate = financeNow.AddDate(0, 0, -1)
		_, err := env.flow.CreateInvoice(ctx, req)
		assert.True(t, errors.Is(err, ErrDueDateBeforeIssueDate))
	})

	t.Run("rejects discount larger than the total", func(t *testing.T) {
		req := invoiceRequest(customer.ID)
		req.DiscountAmount = 1000
		_, err := env.flow.CreateInvoice(ctx, req)
		assert.True(t, errors.Is(err, ErrInvalidDiscount))
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := env.flow.CreateInvoice(ctx, invoiceRequest(customer.ID+999))
		require.Error(t, err)
		assert.True(t, IsCustomerNotFound(err))
		assert.Equal(t, "CREATE_INVOICE_FAILED", ErrorCode(err))
	})

	t.Run("subscription of another customer", func(t *testing.T) {
		other := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
		sub := env.fixtures.CreateSubscription(other, env.fixtures.CreateApplication(), models.SubscriptionStatusActive, models.BillingCycleMonthly, 10)
		req := invoiceRequest(customer.ID)
		req.SubscriptionID = &sub.ID
		_, err := env.flow.CreateInvoice(ctx, req)
		assert.True(t, errors.Is(err, ErrSubscriptionNotFound))
	})
}

func TestFinanceFlow_UpdateInvoiceStatus(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	invoice := env.fixtures.CreateInvoice(customer, models.InvoiceStatusDraft, 100, financeNow, financeNow.AddDate(0, 0, 14))

	_, err := env.flow.UpdateInvoiceStatus(ctx, invoice.ID, &dto.UpdateInvoiceStatusRequest{Status: "paid"})
	require.Error(t, err)
	assert.True(t, IsInvalidStatusTransition(err))
	assert.True(t, IsConflict(err))

	_, err = env.flow.UpdateInvoiceStatus(ctx, invoice.ID, &dto.UpdateInvoiceStatusRequest{Status: "sent"})
	require.NoError(t, err)
	_, err = env.flow.UpdateInvoiceStatus(ctx, invoice.ID, &dto.UpdateInvoiceStatusRequest{Status: "paid"})
	require.NoError(t, err)

	got, err := env.flow.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.Status)
	require.NotNil(t, got.PaidDate)
	assert.True(t, got.PaidDate.Equal(financeNow))

	// paid is terminal
	_, err = env.flow.UpdateInvoiceStatus(ctx, invoice.ID, &dto.UpdateInvoiceStatusRequest{Status: "cancelled"})
	assert.True(t, IsInvalidStatusTransition(err))

	_, err = env.flow.UpdateInvoiceStatus(ctx, invoice.ID+100, &dto.UpdateInvoiceStatusRequest{Status: "sent"})
	assert.True(t, IsInvoiceNotFound(err))
}

func TestFinanceFlow_Payments(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	invoice := env.fixtures.CreateInvoice(customer, models.InvoiceStatusSent, 80, financeNow, financeNow.AddDate(0, 0, 7))
	method := env.fixtures.CreatePaymentMethod()

	res, err := env.flow.CreatePayment(ctx, &dto.CreatePaymentRequest{
		CustomerID:      customer.ID,
		InvoiceID:       &invoice.ID,
		PaymentMethodID: &method.ID,
		Amount:          80,
	})
	require.NoError(t, err)

	payments, err := env.flow.ListPayments(ctx, dto.PaymentFilterRequest{CustomerID: &customer.ID})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "pending", payments[0].Status)
	assert.True(t, strings.HasPrefix(payments[0].Reference, "PAY-"))
	assert.Equal(t, invoice.InvoiceNumber, payments[0].InvoiceNumber)

	_, err = env.flow.UpdatePaymentStatus(ctx, res.ID, &dto.UpdatePaymentStatusRequest{Status: "completed"})
	require.NoError(t, err)
	_, err = env.flow.UpdatePaymentStatus(ctx, res.ID, &dto.UpdatePaymentStatusRequest{Status: "failed"})
	assert.True(t, IsInvalidStatusTransition(err))

	_, err = env.flow.CreatePayment(ctx, &dto.CreatePaymentRequest{CustomerID: customer.ID, Amount: 0})
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	other := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	_, err = env.flow.CreatePayment(ctx, &dto.CreatePaymentRequest{CustomerID: other.ID, InvoiceID: &invoice.ID, Amount: 10})
	assert.True(t, IsInvoiceNotFound(err))
}

func TestFinanceFlow_RefundBoundary(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	payment := env.fixtures.CreatePayment(customer, nil, models.PaymentStatusCompleted, 100, financeNow)

	first, err := env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID, Amount: 40, Reason: "duplicate seat"})
	require.NoError(t, err)
	_, err = env.flow.ProcessRefund(ctx, first.ID, &dto.ProcessRefundRequest{Status: "completed"})
	require.NoError(t, err)

	_, err = env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID, Amount: 60.01, Reason: "too much"})
	require.Error(t, err)
	assert.True(t, IsRefundExceedsAvailable(err))
	assert.True(t, IsValidationError(err))

	second, err := env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID, Amount: 60, Reason: "rest of it"})
	require.NoError(t, err)
	_, err = env.flow.ProcessRefund(ctx, second.ID, &dto.ProcessRefundRequest{Status: "completed"})
	require.NoError(t, err)

	payments, err := env.flow.ListPayments(ctx, dto.PaymentFilterRequest{CustomerID: &customer.ID})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "completed", payments[0].Status)
	assert.Equal(t, models.PaymentDisplayRefunded, payments[0].DisplayStatus)
	assert.InDelta(t, 100, payments[0].RefundedAmount, 1e-9)
	assert.InDelta(t, 0, payments[0].NetAmount, 1e-9)

	refunds, err := env.flow.ListRefunds(ctx, dto.RefundFilterRequest{PaymentTransactionID: &payment.ID})
	require.NoError(t, err)
	assert.Len(t, refunds, 2)
}

func TestFinanceFlow_ProcessRefundRechecksBalance(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	payment := env.fixtures.CreatePayment(customer, nil, models.PaymentStatusCompleted, 100, financeNow)

	a, err := env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID, Amount: 80, Reason: "a"})
	require.NoError(t, err)
	b, err := env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID, Amount: 50, Reason: "b"})
	require.NoError(t, err)

	_, err = env.flow.ProcessRefund(ctx, a.ID, &dto.ProcessRefundRequest{Status: "completed"})
	require.NoError(t, err)

	_, err = env.flow.ProcessRefund(ctx, b.ID, &dto.ProcessRefundRequest{Status: "completed"})
	assert.True(t, IsRefundExceedsAvailable(err))

	_, err = env.flow.ProcessRefund(ctx, b.ID, &dto.ProcessRefundRequest{Status: "rejected"})
	require.NoError(t, err)

	_, err = env.flow.ProcessRefund(ctx, b.ID, &dto.ProcessRefundRequest{Status: "completed"})
	assert.True(t, IsInvalidStatusTransition(err))
}

func TestFinanceFlow_RefundRequiresCompletedPayment(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	payment := env.fixtures.CreatePayment(customer, nil, models.PaymentStatusPending, 100, financeNow)

	_, err := env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID, Amount: 10, Reason: "early"})
	assert.True(t, IsPaymentNotCompleted(err))

	_, err = env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID, Amount: 10, Reason: "  "})
	assert.True(t, errors.Is(err, ErrRefundReasonRequired))

	_, err = env.flow.CreateRefund(ctx, &dto.CreateRefundRequest{PaymentTransactionID: payment.ID + 50, Amount: 10, Reason: "missing"})
	assert.True(t, IsPaymentNotFound(err))
}

func TestFinanceFlow_FinancialSummary(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	app := env.fixtures.CreateApplication()
	env.fixtures.CreateSubscription(customer, app, models.SubscriptionStatusActive, models.BillingCycleMonthly, 50)
	env.fixtures.CreateSubscription(customer, app, models.SubscriptionStatusCancelled, models.BillingCycleMonthly, 70)

	env.fixtures.CreateInvoice(customer, models.InvoiceStatusPaid, 500, financeNow.AddDate(0, -1, 0), financeNow.AddDate(0, 0, -10))
	env.fixtures.CreateInvoice(customer, models.InvoiceStatusSent, 200, financeNow, financeNow.AddDate(0, 0, 5))
	env.fixtures.CreateInvoice(customer, models.InvoiceStatusOverdue, 100, financeNow.AddDate(0, -2, 0), financeNow.AddDate(0, 0, -20))
	env.fixtures.CreateInvoice(customer, models.InvoiceStatusDraft, 999, financeNow, financeNow.AddDate(0, 0, 30))

	payment := env.fixtures.CreatePayment(customer, nil, models.PaymentStatusCompleted, 500, financeNow.AddDate(0, 0, -3))
	env.fixtures.CreateRefund(payment, models.RefundStatusCompleted, 25)
	env.fixtures.CreateRefund(payment, models.RefundStatusPending, 30)

	summary, err := env.flow.FinancialSummary(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 500, summary.TotalRevenue, 1e-9)
	assert.InDelta(t, 300, summary.OutstandingAmount, 1e-9)
	assert.InDelta(t, 25, summary.TotalRefunded, 1e-9)
	assert.Equal(t, 1, summary.PaidInvoices)
	assert.Equal(t, 1, summary.PendingInvoices)
	assert.Equal(t, 1, summary.OverdueInvoices)
	assert.InDelta(t, 50, summary.MonthlyRecurringRevenue, 1e-9)
	assert.InDelta(t, 600, summary.AnnualRecurringRevenue, 1e-9)
	require.Len(t, summary.RevenueByMonth, DefaultCashFlowMonths)
	assert.Equal(t, "Mar 2026", summary.RevenueByMonth[len(summary.RevenueByMonth)-1].Month)
	assert.NotEmpty(t, summary.Formatted)

	flow, err := env.flow.CashFlow(ctx, 3)
	require.NoError(t, err)
	require.Len(t, flow, 3)
	last := flow[2]
	assert.InDelta(t, 500, last.Income, 1e-9)
}

func TestFinanceFlow_UpcomingInvoices(t *testing.T) {
	env := newFinanceEnv(t, nil)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)

	soon := env.fixtures.CreateInvoice(customer, models.InvoiceStatusSent, 10, financeNow, financeNow.AddDate(0, 0, 3))
	sooner := env.fixtures.CreateInvoice(customer, models.InvoiceStatusSent, 10, financeNow, financeNow.Add(2*time.Hour))
	env.fixtures.CreateInvoice(customer, models.InvoiceStatusSent, 10, financeNow, financeNow.AddDate(0, 0, 10))
	env.fixtures.CreateInvoice(customer, models.InvoiceStatusDraft, 10, financeNow, financeNow.AddDate(0, 0, 2))

	upcoming, err := env.flow.UpcomingInvoices(ctx, 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, sooner.ID, upcoming[0].ID)
	assert.Equal(t, soon.ID, upcoming[1].ID)
}

func TestFinanceFlow_ExportInvoices(t *testing.T) {
	archiver := &stubArchiver{}
	env := newFinanceEnv(t, archiver)
	ctx := context.Background()
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	invoice := env.fixtures.CreateInvoice(customer, models.InvoiceStatusSent, 42.5, financeNow, financeNow.AddDate(0, 0, 3))

	file, err := env.flow.ExportInvoices(ctx, dto.InvoiceFilterRequest{})
	require.NoError(t, err)
	assert.Equal(t, "invoices_20260315_120000.xlsx", file.FileName)
	assert.Equal(t, services.XLSXContentType, file.ContentType)
	assert.Equal(t, 1, file.Rows)
	assert.Equal(t, "s3://reports/"+file.FileName, file.ArchivedAt)
	assert.Equal(t, 1, archiver.calls)

	xl, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	header, err := xl.GetCellValue("Invoices", "A1")
	require.NoError(t, err)
	assert.Equal(t, "id", header)
	number, err := xl.GetCellValue("Invoices", "B2")
	require.NoError(t, err)
	assert.Equal(t, invoice.InvoiceNumber, number)
	total, err := xl.GetCellValue("Invoices", "K2")
	require.NoError(t, err)
	assert.Equal(t, "42.50", total)
}

func TestFinanceFlow_ExportSurvivesArchiveFailure(t *testing.T) {
	archiver := &stubArchiver{err: errors.New("bucket unavailable")}
	env := newFinanceEnv(t, archiver)
	customer := env.fixtures.CreateCustomer(models.CustomerStatusActive, 0)
	env.fixtures.CreatePayment(customer, nil, models.PaymentStatusCompleted, 10, financeNow)

	file, err := env.flow.ExportPayments(context.Background(), dto.PaymentFilterRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, file.Data)
	assert.Empty(t, file.ArchivedAt)
	assert.Equal(t, 1, archiver.calls)
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeSheetName("a/b?c"))
	assert.Equal(t, "Sheet", sanitizeSheetName("   "))
	assert.Len(t, sanitizeSheetName(strings.Repeat("x", 40)), 31)
}
