package dto

import "time"

// PermissionDTO grants actions on one resource
type PermissionDTO struct {
	Resource string   `json:"resource" validate:"required,min=1,max=64" example:"invoices"`
	Actions  []string `json:"actions" validate:"required,min=1,dive,required,max=32" example:"read,update"`
}

// RoleDTO is a role with its permissions
type RoleDTO struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Description *string         `json:"description,omitempty"`
	Level       int             `json:"level"`
	IsActive    bool            `json:"is_active"`
	Permissions []PermissionDTO `json:"permissions"`
}

// UserProfileFilterRequest carries the user list query parameters
type UserProfileFilterRequest struct {
	Status *string
	RoleID *uint
}

// UserProfileDTO is a staff profile flattened with its role
type UserProfileDTO struct {
	ID              uint       `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	FullName        string     `json:"full_name"`
	Phone           *string    `json:"phone,omitempty"`
	Department      *string    `json:"department,omitempty"`
	JobTitle        *string    `json:"job_title,omitempty"`
	AvatarURL       *string    `json:"avatar_url,omitempty"`
	RoleID          *uint      `json:"role_id,omitempty"`
	RoleName        string     `json:"role_name,omitempty"`
	RoleLevel       *int       `json:"role_level,omitempty"`
	Status          string     `json:"status"`
	ApprovedBy      *uint      `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ApproveUserRequest activates a pending user with a role
type ApproveUserRequest struct {
	RoleID uint `json:"role_id" validate:"required" example:"3"`
}

// RejectUserRequest rejects a pending user
type RejectUserRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=1000" example:"Unknown department"`
}

// UpdateUserRoleRequest assigns a role to a user
type UpdateUserRoleRequest struct {
	RoleID uint `json:"role_id" validate:"required" example:"3"`
}

// UpdateUserStatusRequest changes the lifecycle state of a user
type UpdateUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended" example:"suspended"`
}

// UpdateRolePermissionsRequest replaces the permissions of a role
type UpdateRolePermissionsRequest struct {
	Permissions []PermissionDTO `json:"permissions" validate:"required,dive"`
}
