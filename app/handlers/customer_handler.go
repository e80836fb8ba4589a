package handlers

import (
	"github.com/amirphl/backoffice/app/dto"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
)

// CustomerHandlerInterface defines the contract for the customer screen handlers
type CustomerHandlerInterface interface {
	ListCustomers(c fiber.Ctx) error
	GetCustomer(c fiber.Ctx) error
	UpdateCustomerStatus(c fiber.Ctx) error
	CustomerMetrics(c fiber.Ctx) error
	TopCustomers(c fiber.Ctx) error
	PaymentReliability(c fiber.Ctx) error
}

type CustomerHandler struct {
	baseHandler
	flow businessflow.CustomerFlow
}

func NewCustomerHandler(flow businessflow.CustomerFlow) CustomerHandlerInterface {
	return &CustomerHandler{baseHandler: newBaseHandler(), flow: flow}
}

// ListCustomers lists customers with their subscriptions
// @Summary List Customers
// @Tags Customers
// @Produce json
// @Param status query string false "active|inactive|churned"
// @Param search query string false "Matches name, email or company"
// @Success 200 {object} dto.APIResponse{data=[]dto.CustomerDTO}
// @Router /api/v1/customers [get]
func (h *CustomerHandler) ListCustomers(c fiber.Ctx) error {
	filter := dto.CustomerFilterRequest{
		Status: queryString(c, "status"),
		Search: queryString(c, "search"),
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	customers, err := h.flow.ListCustomers(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "LIST_CUSTOMERS_FAILED", "Failed to retrieve customers")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customers retrieved successfully", customers)
}

// GetCustomer returns one customer with subscriptions
// @Summary Get Customer
// @Tags Customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} dto.APIResponse{data=dto.CustomerDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/customers/{id} [get]
func (h *CustomerHandler) GetCustomer(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer id", "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	customer, err := h.flow.GetCustomer(ctx, id)
	if err != nil {
		return h.FlowError(c, err, "GET_CUSTOMER_FAILED", "Failed to retrieve customer")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customer retrieved successfully", customer)
}

// UpdateCustomerStatus changes a customer's lifecycle state
// @Summary Update Customer Status
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Param request body dto.UpdateCustomerStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Router /api/v1/customers/{id}/status [put]
func (h *CustomerHandler) UpdateCustomerStatus(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer id", "VALIDATION_ERROR", nil)
	}
	var req dto.UpdateCustomerStatusRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.UpdateCustomerStatus(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "UPDATE_CUSTOMER_STATUS_FAILED", "Failed to update customer status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// CustomerMetrics returns the customer dashboard figures
// @Summary Customer Metrics
// @Tags Customers
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CustomerMetrics}
// @Router /api/v1/customers/metrics [get]
func (h *CustomerHandler) CustomerMetrics(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	metrics, err := h.flow.CustomerMetrics(ctx)
	if err != nil {
		return h.FlowError(c, err, "CUSTOMER_METRICS_FAILED", "Failed to compute customer metrics")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Customer metrics retrieved successfully", metrics)
}

// TopCustomers ranks customers by revenue
// @Summary Top Customers
// @Tags Customers
// @Produce json
// @Param limit query int false "Number of customers, 1-50"
// @Success 200 {object} dto.APIResponse{data=[]dto.TopCustomer}
// @Router /api/v1/customers/top [get]
func (h *CustomerHandler) TopCustomers(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0, 1, 50)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	top, err := h.flow.TopCustomers(ctx, limit)
	if err != nil {
		return h.FlowError(c, err, "TOP_CUSTOMERS_FAILED", "Failed to retrieve top customers")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Top customers retrieved successfully", top)
}

// PaymentReliability reports how punctually a customer pays
// @Summary Customer Payment Reliability
// @Tags Customers
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} dto.APIResponse{data=dto.PaymentReliability}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/customers/{id}/reliability [get]
func (h *CustomerHandler) PaymentReliability(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer id", "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	reliability, err := h.flow.PaymentReliability(ctx, id)
	if err != nil {
		return h.FlowError(c, err, "PAYMENT_RELIABILITY_FAILED", "Failed to compute payment reliability")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Payment reliability retrieved successfully", reliability)
}
