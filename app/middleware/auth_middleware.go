// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/gofiber/fiber/v3"
)

// Keys of the values Authenticate stores on the fiber context
const (
	LocalUserID      = "user_id"
	LocalUserEmail   = "user_email"
	LocalRole        = "role"
	LocalTokenID     = "token_id"
	LocalTokenClaims = "token_claims"
	LocalAccessToken = "access_token"
)

// AuthMiddleware handles JWT token validation and permission checks for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
	permissions  services.PermissionService
}

// NewAuthMiddleware creates a new authentication middleware. permissions may be
// nil, in which case RequirePermission only requires authentication.
func NewAuthMiddleware(tokenService services.TokenService, permissions services.PermissionService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		permissions:  permissions,
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	authRejections.WithLabelValues(code).Inc()
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(c fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

// Authenticate is the middleware function that validates access tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}
		token, ok := BearerToken(c)
		if !ok {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		// ValidateToken already checks for revocation
		claims, err := m.tokenService.ValidateToken(context.Background(), token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenRevoked):
				return unauthorized(c, "Access token has been revoked", "TOKEN_REVOKED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				slog.Warn("token validation failed", "error", err)
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}
		if claims.TokenType != services.TokenTypeAccess {
			return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUserEmail, claims.Email)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalTokenID, claims.TokenID)
		c.Locals(LocalTokenClaims, claims)
		c.Locals(LocalAccessToken, token)

		return c.Next()
	}
}

// RequirePermission allows the request only when the caller's role may perform
// action on resource. It must run after Authenticate.
func (m *AuthMiddleware) RequirePermission(resource, action string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if _, ok := GetUserIDFromContext(c); !ok {
			return unauthorized(c, "Authentication required", "AUTHENTICATION_REQUIRED")
		}
		if m.permissions == nil {
			return c.Next()
		}

		role, _ := c.Locals(LocalRole).(string)
		allowed, err := m.permissions.Enforce(role, resource, action)
		if err != nil {
			slog.Error("permission check failed", "role", role, "resource", resource, "action", action, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Permission check failed",
				Error:   dto.ErrorDetail{Code: "PERMISSION_CHECK_FAILED"},
			})
		}
		if !allowed {
			permissionDenials.WithLabelValues(role, resource, action).Inc()
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "You do not have permission to perform this action",
				Error: dto.ErrorDetail{
					Code:    "PERMISSION_DENIED",
					Details: fiber.Map{"resource": resource, "action": action},
				},
			})
		}
		return c.Next()
	}
}

// GetUserIDFromContext extracts the authenticated user profile id
func GetUserIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals(LocalUserID).(uint)
	return userID, ok && userID > 0
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(LocalTokenClaims).(*services.TokenClaims)
	return claims, ok
}
