// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"time"
)

// SignupRequest registers a staff account that waits for approval
type SignupRequest struct {
	Email      string  `json:"email" validate:"required,email,max=255" example:"jane@example.com"`
	Password   string  `json:"password" validate:"required,min=8,max=100,password_strength" example:"SecurePass123!"`
	FirstName  string  `json:"first_name" validate:"required,min=1,max=128" example:"Jane"`
	LastName   string  `json:"last_name" validate:"required,min=1,max=128" example:"Doe"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=32" example:"+15551234567"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=128" example:"Finance"`
	JobTitle   *string `json:"job_title,omitempty" validate:"omitempty,max=128" example:"Analyst"`
}

// LoginRequest represents the request payload for staff login
type LoginRequest struct {
	Email        string   `json:"email" validate:"required,email,max=255" example:"jane@example.com"`
	Password     string   `json:"password" validate:"required,min=1,max=100" example:"SecurePass123!"`
	RememberMe   bool     `json:"remember_me" example:"true"`
	CaptchaID    string   `json:"captcha_id,omitempty" validate:"omitempty,max=64"`
	CaptchaAngle *float64 `json:"captcha_angle,omitempty" validate:"omitempty,gte=0,lte=360"`
}

// SessionUserDTO is the signed-in user as returned to the client
type SessionUserDTO struct {
	ID          uint            `json:"id"`
	Email       string          `json:"email"`
	FullName    string          `json:"full_name"`
	Status      string          `json:"status"`
	Role        string          `json:"role,omitempty"`
	RoleLevel   *int            `json:"role_level,omitempty"`
	Permissions []PermissionDTO `json:"permissions"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
}

// LoginResponseData is the payload of a successful login or refresh
type LoginResponseData struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type" example:"Bearer"`
	ExpiresIn    int            `json:"expires_in" example:"86400"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         SessionUserDTO `json:"user"`
}

// LoginFailureData tells the client what the next attempt needs
type LoginFailureData struct {
	FailedAttempts  int        `json:"failed_attempts"`
	CaptchaRequired bool       `json:"captcha_required"`
	LockedUntil     *time.Time `json:"locked_until,omitempty"`
}

// RefreshRequest exchanges a refresh token for a new pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally revokes the refresh token too
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// UpdateOwnProfileRequest updates the signed-in user's own profile and password
type UpdateOwnProfileRequest struct {
	FirstName       *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=128"`
	LastName        *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=128"`
	Phone           *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Department      *string `json:"department,omitempty" validate:"omitempty,max=128"`
	JobTitle        *string `json:"job_title,omitempty" validate:"omitempty,max=128"`
	AvatarURL       *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=1024"`
	CurrentPassword *string `json:"current_password,omitempty" validate:"omitempty,max=100"`
	NewPassword     *string `json:"new_password,omitempty" validate:"omitempty,min=8,max=100,password_strength"`
}

// RememberedLoginResponse is what the login screen pre-fills
type RememberedLoginResponse struct {
	Email      string `json:"email,omitempty"`
	RememberMe bool   `json:"remember_me"`
}

// CaptchaChallengeResponse is a rotate captcha to solve before the next login attempt
type CaptchaChallengeResponse struct {
	CaptchaID   string    `json:"captcha_id"`
	MasterImage string    `json:"master_image"`
	ThumbImage  string    `json:"thumb_image"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SettingsRequest replaces the application settings
type SettingsRequest struct {
	Settings map[string]any `json:"settings" validate:"required"`
}
