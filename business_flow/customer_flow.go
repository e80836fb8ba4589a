package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/amirphl/backoffice/utils"
)

// CustomerFlow handles the customers screen and its dashboard
type CustomerFlow interface {
	ListCustomers(ctx context.Context, filter dto.CustomerFilterRequest) ([]dto.CustomerDTO, error)
	GetCustomer(ctx context.Context, id uint) (*dto.CustomerDTO, error)
	UpdateCustomerStatus(ctx context.Context, id uint, req *dto.UpdateCustomerStatusRequest) (*dto.MutationResponse, error)
	CustomerMetrics(ctx context.Context) (*dto.CustomerMetrics, error)
	TopCustomers(ctx context.Context, n int) ([]dto.TopCustomer, error)
	PaymentReliability(ctx context.Context, customerID uint) (*dto.PaymentReliability, error)
}

// CustomerOptions tunes the customer dashboard
type CustomerOptions struct {
	Currency      string
	TopN          int
	RevenueTarget float64
	Now           func() time.Time
}

// CustomerFlowImpl implements the customer business flow
type CustomerFlowImpl struct {
	customerRepo repository.CustomerRepository
	paymentRepo  repository.PaymentTransactionRepository
	accessLogger *services.AccessLogger
	opts         CustomerOptions
}

// NewCustomerFlow creates a new customer flow instance
func NewCustomerFlow(
	customerRepo repository.CustomerRepository,
	paymentRepo repository.PaymentTransactionRepository,
	accessLogger *services.AccessLogger,
	opts CustomerOptions,
) CustomerFlow {
	if opts.Currency == "" {
		opts.Currency = utils.DefaultCurrency
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopCustomers
	}
	if opts.RevenueTarget <= 0 {
		opts.RevenueTarget = DefaultRevenueTarget
	}
	if opts.Now == nil {
		opts.Now = utils.UTCNow
	}
	return &CustomerFlowImpl{
		customerRepo: customerRepo,
		paymentRepo:  paymentRepo,
		accessLogger: accessLogger,
		opts:         opts,
	}
}

// ListCustomers lists customers with their subscriptions and application names
func (f *CustomerFlowImpl) ListCustomers(ctx context.Context, req dto.CustomerFilterRequest) (result []dto.CustomerDTO, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_CUSTOMERS_FAILED", "Failed to list customers", err)
		}
	}()

	filter := models.CustomerFilter{}
	if req.Status != nil {
		status := models.CustomerStatus(*req.Status)
		if !status.Valid() {
			return nil, ErrInvalidCustomerStatus
		}
		filter.Status = &status
	}
	search := ""
	if req.Search != nil {
		search = strings.TrimSpace(*req.Search)
		filter.Search = &search
	}

	customers, err := f.customerRepo.ListWithSubscriptions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if search != "" && f.accessLogger != nil {
		f.accessLogger.LogSearch(ctx, "customer", search, len(customers))
	}
	return mapSlice(customers, ToCustomerDTO), nil
}

// GetCustomer loads one customer with subscriptions
func (f *CustomerFlowImpl) GetCustomer(ctx context.Context, id uint) (*dto.CustomerDTO, error) {
	customer, err := f.customerRepo.ByIDWithSubscriptions(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_CUSTOMER_FAILED", "Failed to get customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("GET_CUSTOMER_FAILED", "Failed to get customer", notFound(ErrCustomerNotFound, id))
	}
	out := ToCustomerDTO(customer)
	return &out, nil
}

// UpdateCustomerStatus sets the lifecycle state; churned stamps churned_at and leaving churned clears it
func (f *CustomerFlowImpl) UpdateCustomerStatus(ctx context.Context, id uint, req *dto.UpdateCustomerStatusRequest) (result *dto.MutationResponse, err error) {
	var customer *models.Customer
	next := models.CustomerStatus(req.Status)
	defer func() {
		auditResult(ctx, f.accessLogger, err, "customer", func() {
			f.accessLogger.LogUpdate(ctx, "customer", services.IDString(id), customer.Name, map[string]any{
				"status": map[string]any{"from": customer.Status, "to": next},
			})
		})
		if err != nil {
			err = NewBusinessError("UPDATE_CUSTOMER_STATUS_FAILED", "Failed to update customer status", err)
		}
	}()

	if !next.Valid() {
		return nil, ErrInvalidCustomerStatus
	}

	customer, err = f.customerRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, notFound(ErrCustomerNotFound, id)
	}

	updates := map[string]any{"status": next}
	switch {
	case next == models.CustomerStatusChurned && customer.Status != models.CustomerStatusChurned:
		updates["churned_at"] = f.opts.Now()
	case next != models.CustomerStatusChurned:
		updates["churned_at"] = nil
	}
	if err = f.customerRepo.UpdateColumns(ctx, id, updates); err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: id, Message: "Customer marked " + string(next)}, nil
}

// CustomerMetrics derives the customer dashboard from all customers
func (f *CustomerFlowImpl) CustomerMetrics(ctx context.Context) (*dto.CustomerMetrics, error) {
	customers, err := f.customerRepo.ByFilter(ctx, models.CustomerFilter{}, "", 0, 0)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_METRICS_FAILED", "Failed to load customer metrics", err)
	}
	metrics := ComputeCustomerMetrics(customers, f.opts.Now())
	FormatCustomerMetrics(&metrics, f.opts.Currency)
	return &metrics, nil
}

// TopCustomers ranks customers by total revenue
func (f *CustomerFlowImpl) TopCustomers(ctx context.Context, n int) ([]dto.TopCustomer, error) {
	if n <= 0 {
		n = f.opts.TopN
	}
	customers, err := f.customerRepo.ListWithSubscriptions(ctx, models.CustomerFilter{})
	if err != nil {
		return nil, NewBusinessError("TOP_CUSTOMERS_FAILED", "Failed to load top customers", err)
	}
	return TopCustomers(customers, n, f.opts.RevenueTarget), nil
}

// PaymentReliability summarises how punctually one customer pays
func (f *CustomerFlowImpl) PaymentReliability(ctx context.Context, customerID uint) (result *dto.PaymentReliability, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("PAYMENT_RELIABILITY_FAILED", "Failed to load payment reliability", err)
		}
	}()

	customer, err := f.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, notFound(ErrCustomerNotFound, customerID)
	}
	payments, err := f.paymentRepo.ListWithDetails(ctx, models.PaymentTransactionFilter{CustomerID: &customerID})
	if err != nil {
		return nil, err
	}
	reliability := ComputePaymentReliability(customerID, payments)
	return &reliability, nil
}
