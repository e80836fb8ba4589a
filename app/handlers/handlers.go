// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/middleware"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "url":
		return err.Field() + " must be a valid URL"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "alpha":
		return err.Field() + " must contain only letters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "password_strength":
		return "Password must contain at least 1 uppercase letter and 1 number"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// newValidator returns a validator with the custom tags used by the request DTOs
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		var hasUpper, hasNumber bool
		for _, char := range fl.Field().String() {
			switch {
			case unicode.IsUpper(char):
				hasUpper = true
			case unicode.IsDigit(char):
				hasNumber = true
			}
		}
		return hasUpper && hasNumber
	})
	return v
}

// validationMessages flattens validator errors into one message per field
func validationMessages(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

// errorMapping maps business sentinels to HTTP answers. First match wins.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{businessflow.ErrAccountLocked, fiber.StatusLocked, "ACCOUNT_LOCKED"},
	{businessflow.ErrCaptchaRequired, fiber.StatusPreconditionRequired, "CAPTCHA_REQUIRED"},
	{businessflow.ErrInvalidCaptcha, fiber.StatusBadRequest, "INVALID_CAPTCHA"},
	{businessflow.ErrIncorrectPassword, fiber.StatusUnauthorized, "INCORRECT_CREDENTIALS"},
	{businessflow.ErrInvalidRefreshToken, fiber.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
	{businessflow.ErrUnauthenticated, fiber.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
	{businessflow.ErrAccountPendingApproval, fiber.StatusForbidden, "ACCOUNT_PENDING_APPROVAL"},
	{businessflow.ErrAccountInactive, fiber.StatusForbidden, "ACCOUNT_INACTIVE"},
	{businessflow.ErrCurrentPasswordInvalid, fiber.StatusBadRequest, "CURRENT_PASSWORD_INVALID"},
	{businessflow.ErrEmailAlreadyExists, fiber.StatusConflict, "EMAIL_EXISTS"},
	{businessflow.ErrRefundExceedsAvailable, fiber.StatusBadRequest, "REFUND_EXCEEDS_AVAILABLE"},
	{businessflow.ErrPaymentNotCompleted, fiber.StatusBadRequest, "PAYMENT_NOT_COMPLETED"},
	{businessflow.ErrInvalidStatusTransition, fiber.StatusConflict, "INVALID_STATUS_TRANSITION"},
	{businessflow.ErrUserNotPending, fiber.StatusConflict, "USER_NOT_PENDING"},
	{businessflow.ErrCannotModifySelf, fiber.StatusForbidden, "CANNOT_MODIFY_SELF"},
	{businessflow.ErrInsufficientRoleLevel, fiber.StatusForbidden, "INSUFFICIENT_ROLE_LEVEL"},
	{businessflow.ErrCustomerNotFound, fiber.StatusNotFound, "CUSTOMER_NOT_FOUND"},
	{businessflow.ErrInvoiceNotFound, fiber.StatusNotFound, "INVOICE_NOT_FOUND"},
	{businessflow.ErrPaymentNotFound, fiber.StatusNotFound, "PAYMENT_NOT_FOUND"},
	{businessflow.ErrRefundNotFound, fiber.StatusNotFound, "REFUND_NOT_FOUND"},
	{businessflow.ErrUserNotFound, fiber.StatusNotFound, "USER_NOT_FOUND"},
	{businessflow.ErrRoleNotFound, fiber.StatusNotFound, "ROLE_NOT_FOUND"},
	{businessflow.ErrSubscriptionNotFound, fiber.StatusNotFound, "SUBSCRIPTION_NOT_FOUND"},
	{businessflow.ErrPaymentMethodNotFound, fiber.StatusNotFound, "PAYMENT_METHOD_NOT_FOUND"},
}

// businessMessage is the text of the innermost cause, which is safe to show for client errors
func businessMessage(err error) string {
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Err != nil {
		return be.Err.Error()
	}
	return err.Error()
}

// statusFor classifies err. Unknown errors are 500 with the fallback code.
func statusFor(err error, fallbackCode string) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	if businessflow.IsValidationError(err) {
		return fiber.StatusBadRequest, "VALIDATION_ERROR"
	}
	return fiber.StatusInternalServerError, fallbackCode
}

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
	timeout   time.Duration
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: newValidator()}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:      errorCode,
			Details:   details,
			RequestID: requestid.FromContext(c),
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// FlowError answers a failed business call. Server-side failures are logged and
// reported with fallbackMessage; client errors carry the cause.
func (h *baseHandler) FlowError(c fiber.Ctx, err error, fallbackCode, fallbackMessage string) error {
	status, code := statusFor(err, fallbackCode)
	if status == fiber.StatusInternalServerError {
		slog.Error(fallbackMessage, "path", c.Path(), "method", c.Method(), "error", err)
		return h.ErrorResponse(c, status, fallbackMessage, code, nil)
	}
	return h.ErrorResponse(c, status, businessMessage(err), code, nil)
}

// bind decodes and validates the JSON body into req. On failure the 400 is
// already written and ok is false.
func (h *baseHandler) bind(c fiber.Ctx, req any) (ok bool, err error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	return true, nil
}

func (h *baseHandler) createRequestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	return middleware.RequestContext(c, h.timeout)
}

// pathID parses a positive numeric route parameter
func pathID(c fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// queryUint parses an optional positive integer query parameter
func queryUint(c fiber.Ctx, name string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, fmt.Errorf("%s must be a positive integer", name)
	}
	id := uint(v)
	return &id, nil
}

// queryInt parses an optional integer query parameter within [lo,hi]
func queryInt(c fiber.Ctx, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return v, nil
}

// queryString returns an optional trimmed query parameter
func queryString(c fiber.Ctx, name string) *string {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	return &raw
}

// queryTime parses an optional RFC3339 or YYYY-MM-DD query parameter
func queryTime(c fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format", name)
	}
	return &t, nil
}

// sendExport streams a generated report as an attachment
func sendExport(c fiber.Ctx, file *dto.ExportFile) error {
	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, file.FileName))
	c.Set("X-Export-Rows", strconv.Itoa(file.Rows))
	if file.ArchivedAt != "" {
		c.Set("X-Export-Archive", file.ArchivedAt)
	}
	return c.Status(fiber.StatusOK).Send(file.Data)
}
