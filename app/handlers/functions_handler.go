package handlers

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/middleware"
	"github.com/amirphl/backoffice/app/services"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
)

// FunctionsHandlerInterface defines the server-side functions exposed outside the session API
type FunctionsHandlerInterface interface {
	CreateUser(c fiber.Ctx) error
}

// FunctionsHandler serves server-side functions. They answer with flat
// {error} bodies instead of the APIResponse envelope.
type FunctionsHandler struct {
	baseHandler
	flow        businessflow.CreateUserFlow
	tokens      services.TokenService
	permissions services.PermissionService
	secret      string
}

// NewFunctionsHandler creates the functions handler. A caller is accepted with
// either the shared function secret or an access token whose role may create users.
func NewFunctionsHandler(flow businessflow.CreateUserFlow, tokens services.TokenService, permissions services.PermissionService, secret string) FunctionsHandlerInterface {
	return &FunctionsHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
		tokens:      tokens,
		permissions: permissions,
		secret:      secret,
	}
}

func functionError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.FunctionErrorResponse{Error: message})
}

// authorized reports whether the bearer is the function secret or an access
// token of a role allowed to create users
func (h *FunctionsHandler) authorized(c fiber.Ctx, bearer string) bool {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(h.secret)) == 1 {
		return true
	}
	if h.tokens == nil {
		return false
	}
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	claims, err := h.tokens.ValidateToken(ctx, bearer)
	if err != nil || claims.TokenType != services.TokenTypeAccess {
		return false
	}
	if h.permissions == nil {
		return false
	}
	allowed, err := h.permissions.Enforce(claims.Role, "users", "create")
	if err != nil {
		slog.Error("permission check failed", "role", claims.Role, "error", err)
		return false
	}
	return allowed
}

// CreateUser creates an auth identity and its profile in one call
// @Summary Create User
// @Description Accepts the function secret or an admin access token as bearer.
// @Tags Functions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateUserRequest true "User"
// @Success 200 {object} dto.CreateUserResponse
// @Failure 400 {object} dto.FunctionErrorResponse "Validation error or duplicate email"
// @Failure 401 {object} dto.FunctionErrorResponse
// @Failure 405 {object} dto.FunctionErrorResponse
// @Failure 500 {object} dto.FunctionErrorResponse
// @Router /api/v1/functions/create-user [post]
func (h *FunctionsHandler) CreateUser(c fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		c.Set(fiber.HeaderAllow, fiber.MethodPost)
		return functionError(c, fiber.StatusMethodNotAllowed, "Method not allowed")
	}
	if h.flow == nil {
		return functionError(c, fiber.StatusInternalServerError, "User creation is not configured")
	}

	bearer, ok := middleware.BearerToken(c)
	if !ok || !h.authorized(c, bearer) {
		return functionError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.CreateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return functionError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return functionError(c, fiber.StatusBadRequest, strings.Join(validationMessages(err), "; "))
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.CreateUser(ctx, &req)
	if err != nil {
		if businessflow.IsValidationError(err) || businessflow.IsEmailAlreadyExists(err) || businessflow.IsRoleNotFound(err) {
			return functionError(c, fiber.StatusBadRequest, businessMessage(err))
		}
		slog.Error("create user function failed", "email", req.Email, "error", err)
		return functionError(c, fiber.StatusInternalServerError, "Failed to create user")
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
