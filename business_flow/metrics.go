package businessflow

import (
	"math"
	"sort"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/utils"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Dashboard defaults
const (
	DefaultCashFlowMonths   = 6
	DefaultUpcomingWindow   = 7 * 24 * time.Hour
	DefaultTopCustomers     = 5
	DefaultRevenueTarget    = 1000.0
	NewCustomerWindow       = 30 * 24 * time.Hour
	UnassignedApplication   = "Unassigned"
	refundedAmountTolerance = 0.005
)

// InvoiceTotals returns amount (Σ qty*price), tax amount and total (amount + tax - discount)
func InvoiceTotals(items []dto.InvoiceItemRequest, taxRate, discount float64) (amount, tax, total float64) {
	for _, item := range items {
		amount += item.Quantity * item.UnitPrice
	}
	tax = amount * taxRate / 100
	total = amount + tax - discount
	return amount, tax, total
}

// RefundedAmount sums the completed refunds loaded on p
func RefundedAmount(p *models.PaymentTransaction) float64 {
	var total float64
	for _, r := range p.Refunds {
		if r.Status == models.RefundStatusCompleted {
			total += r.Amount
		}
	}
	return total
}

// NetAmount is the payment amount less completed refunds
func NetAmount(p *models.PaymentTransaction) float64 {
	return p.Amount - RefundedAmount(p)
}

// DisplayPaymentStatus is the stored status, except that a completed payment
// whose refunds cover the full amount reads as refunded
func DisplayPaymentStatus(p *models.PaymentTransaction) string {
	if p.Status == models.PaymentStatusCompleted && p.Amount > 0 && RefundedAmount(p) >= p.Amount-refundedAmountTolerance {
		return models.PaymentDisplayRefunded
	}
	return string(p.Status)
}

func refundTime(r *models.Refund) time.Time {
	if r.ProcessedAt != nil {
		return *r.ProcessedAt
	}
	return r.CreatedAt
}

// CashFlowByMonth buckets completed payments (income) and completed refunds
// into the trailing months calendar months ending with now's month, oldest first
func CashFlowByMonth(payments []*models.PaymentTransaction, refunds []*models.Refund, now time.Time, months int) []dto.CashFlowMonth {
	if months <= 0 {
		return []dto.CashFlowMonth{}
	}
	start := utils.StartOfMonth(now).AddDate(0, -(months - 1), 0)

	out := make([]dto.CashFlowMonth, months)
	index := make(map[string]int, months)
	for i := range months {
		label := utils.MonthLabel(start.AddDate(0, i, 0))
		out[i].Month = label
		index[label] = i
	}

	for _, p := range payments {
		if p.Status != models.PaymentStatusCompleted {
			continue
		}
		if i, ok := index[utils.MonthLabel(p.PaymentDate.In(now.Location()))]; ok {
			out[i].Income += p.Amount
		}
	}
	for _, r := range refunds {
		if r.Status != models.RefundStatusCompleted {
			continue
		}
		if i, ok := index[utils.MonthLabel(refundTime(r).In(now.Location()))]; ok {
			out[i].Refunds += r.Amount
		}
	}
	for i := range out {
		out[i].Net = out[i].Income - out[i].Refunds
	}
	return out
}

// RevenueByApplication groups paid invoice totals by the subscribed application
func RevenueByApplication(invoices []*models.Invoice) []dto.ApplicationRevenue {
	totals := map[string]float64{}
	var grand float64
	for _, inv := range invoices {
		if inv.Status != models.InvoiceStatusPaid {
			continue
		}
		name := UnassignedApplication
		if inv.Subscription != nil && inv.Subscription.AppName() != "" {
			name = inv.Subscription.AppName()
		}
		totals[name] += inv.TotalAmount
		grand += inv.TotalAmount
	}

	out := make([]dto.ApplicationRevenue, 0, len(totals))
	for name, revenue := range totals {
		share := 0.0
		if grand > 0 {
			share = revenue / grand * 100
		}
		out = append(out, dto.ApplicationRevenue{Application: name, Revenue: revenue, Share: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Application < out[j].Application
	})
	return out
}

// MonthlyRecurringRevenue sums the normalised monthly price of active subscriptions
func MonthlyRecurringRevenue(subs []*models.Subscription) float64 {
	var mrr float64
	for _, s := range subs {
		if s.Status == models.SubscriptionStatusActive {
			mrr += s.MonthlyPrice()
		}
	}
	return mrr
}

// ComputeFinancialSummary derives the finance dashboard from loaded rows
func ComputeFinancialSummary(
	invoices []*models.Invoice,
	payments []*models.PaymentTransaction,
	refunds []*models.Refund,
	subs []*models.Subscription,
	now time.Time,
	months int,
) dto.FinancialSummary {
	var summary dto.FinancialSummary
	for _, inv := range invoices {
		switch inv.Status {
		case models.InvoiceStatusPaid:
			summary.TotalRevenue += inv.TotalAmount
			summary.PaidInvoices++
		case models.InvoiceStatusOverdue:
			summary.OutstandingAmount += inv.TotalAmount
			summary.OverdueInvoices++
		case models.InvoiceStatusSent:
			summary.OutstandingAmount += inv.TotalAmount
			summary.PendingInvoices++
		}
	}
	for _, r := range refunds {
		if r.Status == models.RefundStatusCompleted {
			summary.TotalRefunded += r.Amount
		}
	}
	summary.MonthlyRecurringRevenue = MonthlyRecurringRevenue(subs)
	summary.AnnualRecurringRevenue = summary.MonthlyRecurringRevenue * 12
	summary.RevenueByMonth = CashFlowByMonth(payments, refunds, now, months)
	summary.RevenueByApplication = RevenueByApplication(invoices)
	return summary
}

// UpcomingDueInvoices returns sent invoices due from the start of today up to now+window, soonest first
func UpcomingDueInvoices(invoices []*models.Invoice, now time.Time, window time.Duration) []*models.Invoice {
	from := utils.StartOfDay(now)
	until := now.Add(window)

	out := make([]*models.Invoice, 0)
	for _, inv := range invoices {
		if inv.Status != models.InvoiceStatusSent {
			continue
		}
		if inv.DueDate.Before(from) || inv.DueDate.After(until) {
			continue
		}
		out = append(out, inv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

func activeSubscriptions(c *models.Customer) (count int, monthly float64) {
	for i := range c.Subscriptions {
		s := &c.Subscriptions[i]
		if s.Status == models.SubscriptionStatusActive {
			count++
			monthly += s.MonthlyPrice()
		}
	}
	return count, monthly
}

func percentChange(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// ComputeCustomerMetrics derives the customer dashboard from loaded customers
func ComputeCustomerMetrics(customers []*models.Customer, now time.Time) dto.CustomerMetrics {
	var m dto.CustomerMetrics
	var previousNew int
	newSince := now.Add(-NewCustomerWindow)
	previousSince := newSince.Add(-NewCustomerWindow)

	for _, c := range customers {
		m.TotalCustomers++
		m.TotalRevenue += c.TotalSpent
		switch c.Status {
		case models.CustomerStatusActive:
			m.ActiveCustomers++
		case models.CustomerStatusChurned:
			m.ChurnedCustomers++
		}
		switch {
		case !c.CreatedAt.Before(newSince) && !c.CreatedAt.After(now):
			m.NewCustomers++
		case !c.CreatedAt.Before(previousSince) && c.CreatedAt.Before(newSince):
			previousNew++
		}
	}

	if m.TotalCustomers > 0 {
		m.AverageCustomerValue = m.TotalRevenue / float64(m.TotalCustomers)
		m.ChurnRate = float64(m.ChurnedCustomers) / float64(m.TotalCustomers) * 100
	}
	m.GrowthRate = percentChange(m.NewCustomers, previousNew)
	return m
}

// TopCustomers ranks customers by total revenue and reports monthly revenue
// progress against target, capped at 100 percent
func TopCustomers(customers []*models.Customer, n int, target float64) []dto.TopCustomer {
	ranked := make([]*models.Customer, len(customers))
	copy(ranked, customers)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].TotalSpent > ranked[j].TotalSpent })
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]dto.TopCustomer, 0, len(ranked))
	for i, c := range ranked {
		count, monthly := activeSubscriptions(c)
		progress := 0.0
		if target > 0 {
			progress = math.Min(monthly/target*100, 100)
		}
		out = append(out, dto.TopCustomer{
			Rank:                i + 1,
			CustomerID:          c.ID,
			Name:                c.Name,
			Company:             c.Company,
			Status:              string(c.Status),
			TotalRevenue:        c.TotalSpent,
			MonthlyRevenue:      monthly,
			ActiveSubscriptions: count,
			Progress:            progress,
		})
	}
	return out
}

// ComputePaymentReliability counts completed payments made by their invoice due
// date as on time and later ones as late. Rate is completed / (completed + late),
// where completed includes the late ones.
func ComputePaymentReliability(customerID uint, payments []*models.PaymentTransaction) dto.PaymentReliability {
	r := dto.PaymentReliability{CustomerID: customerID}
	for _, p := range payments {
		switch p.Status {
		case models.PaymentStatusFailed:
			r.Failed++
		case models.PaymentStatusCompleted:
			if p.Invoice != nil && p.PaymentDate.After(p.Invoice.DueDate) {
				r.Late++
			} else {
				r.OnTime++
			}
		}
	}
	completed := r.OnTime + r.Late
	if denom := completed + r.Late; denom > 0 {
		r.Rate = float64(completed) / float64(denom) * 100
	}
	return r
}

var displayPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount with two decimals and grouping, e.g. "USD 1,234.50"
func FormatMoney(amount float64, currency string) string {
	if currency == "" {
		currency = utils.DefaultCurrency
	}
	return displayPrinter.Sprintf("%s %.2f", currency, amount)
}

// FormatPercent renders a percentage with one decimal, e.g. "12.5%"
func FormatPercent(v float64) string {
	return displayPrinter.Sprintf("%.1f%%", v)
}

// FormatFinancialSummary fills the display strings of s
func FormatFinancialSummary(s *dto.FinancialSummary, currency string) {
	s.Formatted = map[string]string{
		"total_revenue":             FormatMoney(s.TotalRevenue, currency),
		"outstanding_amount":        FormatMoney(s.OutstandingAmount, currency),
		"total_refunded":            FormatMoney(s.TotalRefunded, currency),
		"monthly_recurring_revenue": FormatMoney(s.MonthlyRecurringRevenue, currency),
		"annual_recurring_revenue":  FormatMoney(s.AnnualRecurringRevenue, currency),
	}
}

// FormatCustomerMetrics fills the display strings of m
func FormatCustomerMetrics(m *dto.CustomerMetrics, currency string) {
	m.Formatted = map[string]string{
		"total_revenue":          FormatMoney(m.TotalRevenue, currency),
		"average_customer_value": FormatMoney(m.AverageCustomerValue, currency),
		"churn_rate":             FormatPercent(m.ChurnRate),
		"growth_rate":            FormatPercent(m.GrowthRate),
	}
}
