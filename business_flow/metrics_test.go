package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metricsNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestInvoiceTotals(t *testing.T) {
	items := []dto.InvoiceItemRequest{
		{Description: "seats", Quantity: 3, UnitPrice: 20},
		{Description: "setup", Quantity: 1, UnitPrice: 40},
	}

	amount, tax, total := InvoiceTotals(items, 10, 5)
	assert.InDelta(t, 100, amount, 1e-9)
	assert.InDelta(t, 10, tax, 1e-9)
	assert.InDelta(t, 105, total, 1e-9)

	amount, tax, total = InvoiceTotals(nil, 10, 0)
	assert.Zero(t, amount)
	assert.Zero(t, tax)
	assert.Zero(t, total)
}

func TestRefundedAndNetAmount(t *testing.T) {
	p := &models.PaymentTransaction{
		Amount: 100,
		Status: models.PaymentStatusCompleted,
		Refunds: []models.Refund{
			{Amount: 30, Status: models.RefundStatusCompleted},
			{Amount: 50, Status: models.RefundStatusPending},
			{Amount: 20, Status: models.RefundStatusRejected},
		},
	}

	assert.InDelta(t, 30, RefundedAmount(p), 1e-9)
	assert.InDelta(t, 70, NetAmount(p), 1e-9)
	assert.Equal(t, "completed", DisplayPaymentStatus(p))

	p.Refunds = append(p.Refunds, models.Refund{Amount: 70, Status: models.RefundStatusCompleted})
	assert.Equal(t, models.PaymentDisplayRefunded, DisplayPaymentStatus(p))
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)

	pending := &models.PaymentTransaction{Amount: 10, Status: models.PaymentStatusPending}
	assert.Equal(t, "pending", DisplayPaymentStatus(pending))
}

func TestCashFlowByMonth(t *testing.T) {
	processed := time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)
	payments := []*models.PaymentTransaction{
		{Amount: 100, Status: models.PaymentStatusCompleted, PaymentDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{Amount: 50, Status: models.PaymentStatusCompleted, PaymentDate: time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)},
		{Amount: 70, Status: models.PaymentStatusFailed, PaymentDate: time.Date(2026, time.February, 11, 0, 0, 0, 0, time.UTC)},
		{Amount: 999, Status: models.PaymentStatusCompleted, PaymentDate: time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)},
	}
	refunds := []*models.Refund{
		{Amount: 20, Status: models.RefundStatusCompleted, ProcessedAt: &processed},
		{Amount: 5, Status: models.RefundStatusPending, CreatedAt: processed},
	}

	flow := CashFlowByMonth(payments, refunds, metricsNow, 6)
	require.Len(t, flow, 6)
	assert.Equal(t, "Oct 2025", flow[0].Month)
	assert.Equal(t, "Mar 2026", flow[5].Month)

	assert.InDelta(t, 100, flow[5].Income, 1e-9)
	assert.InDelta(t, 50, flow[4].Income, 1e-9)
	assert.InDelta(t, 20, flow[4].Refunds, 1e-9)
	assert.InDelta(t, 30, flow[4].Net, 1e-9)
	for _, m := range flow[:4] {
		assert.Zero(t, m.Income, m.Month)
	}

	assert.Empty(t, CashFlowByMonth(payments, refunds, metricsNow, 0))
}

func TestRevenueByApplication(t *testing.T) {
	crm := &models.Subscription{Application: &models.Application{Name: "CRM"}}
	analytics := &models.Subscription{Application: &models.Application{Name: "Analytics"}}
	invoices := []*models.Invoice{
		{Status: models.InvoiceStatusPaid, TotalAmount: 300, Subscription: crm},
		{Status: models.InvoiceStatusPaid, TotalAmount: 100, Subscription: analytics},
		{Status: models.InvoiceStatusPaid, TotalAmount: 100},
		{Status: models.InvoiceStatusSent, TotalAmount: 1000, Subscription: analytics},
	}

	out := RevenueByApplication(invoices)
	require.Len(t, out, 3)
	assert.Equal(t, "CRM", out[0].Application)
	assert.InDelta(t, 60, out[0].Share, 1e-9)
	assert.Equal(t, "Analytics", out[1].Application)
	assert.Equal(t, UnassignedApplication, out[2].Application)

	assert.Empty(t, RevenueByApplication(nil))
}

func TestComputeFinancialSummary(t *testing.T) {
	invoices := []*models.Invoice{
		{Status: models.InvoiceStatusPaid, TotalAmount: 200},
		{Status: models.InvoiceStatusPaid, TotalAmount: 300},
		{Status: models.InvoiceStatusSent, TotalAmount: 50},
		{Status: models.InvoiceStatusOverdue, TotalAmount: 25},
		{Status: models.InvoiceStatusDraft, TotalAmount: 1000},
		{Status: models.InvoiceStatusCancelled, TotalAmount: 1000},
	}
	refunds := []*models.Refund{
		{Amount: 40, Status: models.RefundStatusCompleted, CreatedAt: metricsNow},
		{Amount: 60, Status: models.RefundStatusRejected, CreatedAt: metricsNow},
	}
	subs := []*models.Subscription{
		{Status: models.SubscriptionStatusActive, BillingCycle: models.BillingCycleMonthly, Price: 50},
		{Status: models.SubscriptionStatusActive, BillingCycle: models.BillingCycleYearly, Price: 1200},
		{Status: models.SubscriptionStatusCancelled, BillingCycle: models.BillingCycleMonthly, Price: 500},
	}

	s := ComputeFinancialSummary(invoices, nil, refunds, subs, metricsNow, 6)
	assert.InDelta(t, 500, s.TotalRevenue, 1e-9)
	assert.InDelta(t, 75, s.OutstandingAmount, 1e-9)
	assert.InDelta(t, 40, s.TotalRefunded, 1e-9)
	assert.Equal(t, 2, s.PaidInvoices)
	assert.Equal(t, 1, s.OverdueInvoices)
	assert.Equal(t, 1, s.PendingInvoices)
	assert.InDelta(t, 150, s.MonthlyRecurringRevenue, 1e-9)
	assert.InDelta(t, 1800, s.AnnualRecurringRevenue, 1e-9)
	assert.Len(t, s.RevenueByMonth, 6)
	assert.InDelta(t, 40, s.RevenueByMonth[5].Refunds, 1e-9)
}

func TestUpcomingDueInvoices(t *testing.T) {
	in := func(status models.InvoiceStatus, d time.Duration) *models.Invoice {
		return &models.Invoice{Status: status, DueDate: metricsNow.Add(d)}
	}
	day := 24 * time.Hour
	dueIn7 := in(models.InvoiceStatusSent, 7*day)
	dueIn2 := in(models.InvoiceStatusSent, 2*day)
	dueEarlierToday := in(models.InvoiceStatusSent, -2*time.Hour)
	invoices := []*models.Invoice{
		dueIn7,
		in(models.InvoiceStatusSent, 8*day),
		dueIn2,
		in(models.InvoiceStatusDraft, day),
		in(models.InvoiceStatusPaid, day),
		in(models.InvoiceStatusSent, -2*day),
		dueEarlierToday,
	}

	out := UpcomingDueInvoices(invoices, metricsNow, DefaultUpcomingWindow)
	assert.Equal(t, []*models.Invoice{dueEarlierToday, dueIn2, dueIn7}, out)
}

func TestComputeCustomerMetrics(t *testing.T) {
	day := 24 * time.Hour
	customers := []*models.Customer{
		{Status: models.CustomerStatusActive, TotalSpent: 600, CreatedAt: metricsNow.Add(-5 * day)},
		{Status: models.CustomerStatusActive, TotalSpent: 300, CreatedAt: metricsNow.Add(-10 * day)},
		{Status: models.CustomerStatusChurned, TotalSpent: 100, CreatedAt: metricsNow.Add(-45 * day)},
		{Status: models.CustomerStatusInactive, TotalSpent: 0, CreatedAt: metricsNow.Add(-200 * day)},
	}

	m := ComputeCustomerMetrics(customers, metricsNow)
	assert.Equal(t, 4, m.TotalCustomers)
	assert.Equal(t, 2, m.ActiveCustomers)
	assert.Equal(t, 1, m.ChurnedCustomers)
	assert.Equal(t, 2, m.NewCustomers)
	assert.InDelta(t, 1000, m.TotalRevenue, 1e-9)
	assert.InDelta(t, 250, m.AverageCustomerValue, 1e-9)
	assert.InDelta(t, 25, m.ChurnRate, 1e-9)
	assert.InDelta(t, 100, m.GrowthRate, 1e-9)
}

func TestComputeCustomerMetrics_NoCustomers(t *testing.T) {
	m := ComputeCustomerMetrics(nil, metricsNow)
	assert.Zero(t, m.TotalCustomers)
	assert.Zero(t, m.AverageCustomerValue)
	assert.Zero(t, m.ChurnRate)
	assert.Zero(t, m.GrowthRate)
}

func TestTopCustomers_RankingAndProgress(t *testing.T) {
	active := func(price float64) models.Subscription {
		return models.Subscription{Status: models.SubscriptionStatusActive, BillingCycle: models.BillingCycleMonthly, Price: price}
	}
	star := &models.Customer{
		ID:         1,
		Name:       "Star",
		TotalSpent: 1200,
		Status:     models.CustomerStatusActive,
		Subscriptions: []models.Subscription{
			active(50), active(60), active(40),
			{Status: models.SubscriptionStatusCancelled, BillingCycle: models.BillingCycleMonthly, Price: 500},
		},
	}
	whale := &models.Customer{
		ID:            2,
		Name:          "Whale",
		TotalSpent:    5000,
		Subscriptions: []models.Subscription{active(2000)},
	}
	small := &models.Customer{ID: 3, Name: "Small", TotalSpent: 10}

	top := TopCustomers([]*models.Customer{star, small, whale}, DefaultTopCustomers, DefaultRevenueTarget)
	require.Len(t, top, 3)

	assert.Equal(t, "Whale", top[0].Name)
	assert.Equal(t, 1, top[0].Rank)
	assert.InDelta(t, 100, top[0].Progress, 1e-9)

	assert.Equal(t, "Star", top[1].Name)
	assert.Equal(t, 3, top[1].ActiveSubscriptions)
	assert.InDelta(t, 150, top[1].MonthlyRevenue, 1e-9)
	assert.InDelta(t, 15, top[1].Progress, 1e-9)

	assert.Len(t, TopCustomers([]*models.Customer{star, small, whale}, 2, DefaultRevenueTarget), 2)
}

func TestComputePaymentReliability(t *testing.T) {
	due := metricsNow
	invoice := &models.Invoice{DueDate: due}
	payments := []*models.PaymentTransaction{
		{Status: models.PaymentStatusCompleted, PaymentDate: due.Add(-time.Hour), Invoice: invoice},
		{Status: models.PaymentStatusCompleted, PaymentDate: due, Invoice: invoice},
		{Status: models.PaymentStatusCompleted, PaymentDate: due.Add(48 * time.Hour), Invoice: invoice},
		{Status: models.PaymentStatusCompleted, PaymentDate: due.Add(72 * time.Hour)},
		{Status: models.PaymentStatusFailed, PaymentDate: due, Invoice: invoice},
		{Status: models.PaymentStatusPending, PaymentDate: due, Invoice: invoice},
	}

	r := ComputePaymentReliability(7, payments)
	assert.Equal(t, uint(7), r.CustomerID)
	assert.Equal(t, 3, r.OnTime)
	assert.Equal(t, 1, r.Late)
	assert.Equal(t, 1, r.Failed)
	assert.InDelta(t, 80, r.Rate, 1e-9)

	assert.Zero(t, ComputePaymentReliability(7, nil).Rate)

	oneLate := ComputePaymentReliability(7, payments[1:3])
	assert.InDelta(t, 200.0/3, oneLate.Rate, 1e-9)

	allOnTime := ComputePaymentReliability(7, payments[:2])
	assert.InDelta(t, 100, allOnTime.Rate, 1e-9)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "USD 1,234.50", FormatMoney(1234.5, ""))
	assert.Equal(t, "EUR 0.00", FormatMoney(0, "EUR"))
	assert.Equal(t, "12.5%", FormatPercent(12.5))

	s := dto.FinancialSummary{TotalRevenue: 10}
	FormatFinancialSummary(&s, utils.DefaultCurrency)
	assert.Equal(t, "USD 10.00", s.Formatted["total_revenue"])
}
