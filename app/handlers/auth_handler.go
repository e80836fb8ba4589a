package handlers

import (
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/middleware"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// ClientCookie identifies a browser for remember-me. It carries no credentials.
const ClientCookie = "bo_client"

const clientCookieMaxAge = 365 * 24 * time.Hour

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Signup(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Session(c fiber.Ctx) error
	UpdateOwnProfile(c fiber.Ctx) error
	RememberedLogin(c fiber.Ctx) error
	Captcha(c fiber.Ctx) error
	GetSettings(c fiber.Ctx) error
	SaveSettings(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	baseHandler
	flow         businessflow.AuthFlow
	secureCookie bool
}

// NewAuthHandler creates a new authentication handler. secureCookie marks the
// client cookie Secure and should be true behind TLS.
func NewAuthHandler(flow businessflow.AuthFlow, secureCookie bool) AuthHandlerInterface {
	return &AuthHandler{baseHandler: newBaseHandler(), flow: flow, secureCookie: secureCookie}
}

// clientScope returns the bo_client id of the browser, issuing one when absent
func (h *AuthHandler) clientScope(c fiber.Ctx) string {
	if id := c.Cookies(ClientCookie); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     ClientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(clientCookieMaxAge.Seconds()),
		Secure:   h.secureCookie,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return id
}

// Signup registers a staff account that waits for approval
// @Summary Staff Signup
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Signup data"
// @Success 201 {object} dto.APIResponse{data=dto.MutationResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email already exists"
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c fiber.Ctx) error {
	var req dto.SignupRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.Signup(ctx, &req)
	if err != nil {
		return h.FlowError(c, err, "SIGNUP_FAILED", "Signup failed")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// Login authenticates a staff member
// @Summary Staff Login
// @Description After 3 failed attempts a rotate captcha is required; after 5 within an hour the account is locked for the rest of the hour.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponseData}
// @Failure 401 {object} dto.APIResponse{error=dto.ErrorDetail{details=dto.LoginFailureData}} "Incorrect credentials"
// @Failure 403 {object} dto.APIResponse "Account pending approval or inactive"
// @Failure 423 {object} dto.APIResponse{error=dto.ErrorDetail{details=dto.LoginFailureData}} "Account locked"
// @Failure 428 {object} dto.APIResponse{error=dto.ErrorDetail{details=dto.LoginFailureData}} "Captcha required"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	scope := h.clientScope(c)
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.Login(ctx, &req, scope)
	if err == nil {
		return h.SuccessResponse(c, fiber.StatusOK, "Login successful", res)
	}

	status, code := statusFor(err, "LOGIN_FAILED")
	if status == fiber.StatusInternalServerError {
		return h.FlowError(c, err, "LOGIN_FAILED", "Login failed")
	}
	var details any
	if businessflow.IsIncorrectPassword(err) || businessflow.IsAccountLocked(err) ||
		businessflow.IsCaptchaRequired(err) || code == "INVALID_CAPTCHA" {
		if data, serr := h.flow.LoginStatus(ctx, req.Email); serr == nil {
			details = data
		}
	}
	return h.ErrorResponse(c, status, businessMessage(err), code, details)
}

// Logout revokes the caller's tokens
// @Summary Logout
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	token, ok := middleware.BearerToken(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Access token is required", "MISSING_ACCESS_TOKEN", nil)
	}
	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	if err := h.flow.Logout(ctx, token, &req); err != nil {
		return h.FlowError(c, err, "LOGOUT_FAILED", "Logout failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh Tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponseData}
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.Refresh(ctx, &req)
	if err != nil {
		return h.FlowError(c, err, "REFRESH_FAILED", "Token refresh failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tokens refreshed successfully", res)
}

// Session returns the signed-in user
// @Summary Current Session
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SessionUserDTO}
// @Router /api/v1/auth/session [get]
func (h *AuthHandler) Session(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	session, err := h.flow.Session(ctx, userID)
	if err != nil {
		return h.FlowError(c, err, "SESSION_FAILED", "Failed to load session")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Session retrieved successfully", session)
}

// UpdateOwnProfile updates the caller's profile and optionally their password
// @Summary Update Own Profile
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateOwnProfileRequest true "Profile fields"
// @Success 200 {object} dto.APIResponse{data=dto.SessionUserDTO}
// @Router /api/v1/auth/user [put]
func (h *AuthHandler) UpdateOwnProfile(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}
	var req dto.UpdateOwnProfileRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	session, err := h.flow.UpdateOwnProfile(ctx, userID, &req)
	if err != nil {
		return h.FlowError(c, err, "UPDATE_PROFILE_FAILED", "Failed to update profile")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Profile updated successfully", session)
}

// RememberedLogin returns the email this browser asked to remember
// @Summary Remembered Login
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.RememberedLoginResponse}
// @Router /api/v1/auth/remembered [get]
func (h *AuthHandler) RememberedLogin(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.RememberedLogin(ctx, c.Cookies(ClientCookie))
	if err != nil {
		return h.FlowError(c, err, "REMEMBERED_LOGIN_FAILED", "Failed to read remembered login")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Remembered login retrieved successfully", res)
}

// Captcha issues a rotate captcha challenge
// @Summary Login Captcha
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CaptchaChallengeResponse}
// @Failure 404 {object} dto.APIResponse "Captcha disabled"
// @Router /api/v1/auth/captcha [get]
func (h *AuthHandler) Captcha(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.Captcha(ctx)
	if err != nil {
		if businessflow.ErrorCode(err) == "CAPTCHA_DISABLED" {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Captcha is disabled", "CAPTCHA_DISABLED", nil)
		}
		return h.FlowError(c, err, "CAPTCHA_FAILED", "Failed to generate captcha")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Captcha generated successfully", res)
}

// GetSettings returns the application settings
// @Summary Get Settings
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=map[string]any}
// @Router /api/v1/settings [get]
func (h *AuthHandler) GetSettings(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	settings, err := h.flow.Settings(ctx)
	if err != nil {
		return h.FlowError(c, err, "SETTINGS_FAILED", "Failed to load settings")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings retrieved successfully", settings)
}

// SaveSettings replaces the application settings
// @Summary Save Settings
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SettingsRequest true "Settings"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/settings [put]
func (h *AuthHandler) SaveSettings(c fiber.Ctx) error {
	var req dto.SettingsRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	if err := h.flow.SaveSettings(ctx, &req); err != nil {
		return h.FlowError(c, err, "SAVE_SETTINGS_FAILED", "Failed to save settings")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings saved successfully", req.Settings)
}
