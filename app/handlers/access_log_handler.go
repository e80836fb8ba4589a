package handlers

import (
	"github.com/amirphl/backoffice/app/dto"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
)

type AccessLogHandlerInterface interface {
	ListAccessLogs(c fiber.Ctx) error
	ExportAccessLogs(c fiber.Ctx) error
}

type AccessLogHandler struct {
	baseHandler
	flow businessflow.AccessLogFlow
}

func NewAccessLogHandler(flow businessflow.AccessLogFlow) AccessLogHandlerInterface {
	return &AccessLogHandler{baseHandler: newBaseHandler(), flow: flow}
}

func (h *AccessLogHandler) filter(c fiber.Ctx) (dto.AccessLogFilterRequest, error) {
	var req dto.AccessLogFilterRequest
	var err error
	if req.UserID, err = queryUint(c, "user_id"); err != nil {
		return req, err
	}
	req.Action = queryString(c, "action")
	req.ResourceType = queryString(c, "resource_type")
	req.Search = queryString(c, "search")
	if req.StartDate, err = queryTime(c, "start_date"); err != nil {
		return req, err
	}
	if req.EndDate, err = queryTime(c, "end_date"); err != nil {
		return req, err
	}
	return req, nil
}

// ListAccessLogs returns the newest audit records, at most 100
// @Summary List Access Logs
// @Tags Access Logs
// @Produce json
// @Param user_id query int false "User ID"
// @Param action query string false "Action verb"
// @Param resource_type query string false "Resource type"
// @Param search query string false "Matches email, resource name or URL"
// @Param start_date query string false "RFC3339 or YYYY-MM-DD"
// @Param end_date query string false "RFC3339 or YYYY-MM-DD"
// @Success 200 {object} dto.APIResponse{data=dto.ListResult[dto.AccessLogDTO]}
// @Router /api/v1/access-logs [get]
func (h *AccessLogHandler) ListAccessLogs(c fiber.Ctx) error {
	filter, err := h.filter(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	logs, err := h.flow.ListAccessLogs(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "LIST_ACCESS_LOGS_FAILED", "Failed to retrieve access logs")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Access logs retrieved successfully", dto.NewListResult(logs))
}

// ExportAccessLogs downloads the filtered audit records as xlsx
// @Summary Export Access Logs
// @Tags Access Logs
// @Router /api/v1/access-logs/export [get]
func (h *AccessLogHandler) ExportAccessLogs(c fiber.Ctx) error {
	filter, err := h.filter(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	file, err := h.flow.ExportAccessLogs(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "EXPORT_ACCESS_LOGS_FAILED", "Failed to export access logs")
	}
	return sendExport(c, file)
}
