package models

import "time"

type UserStatus string

const (
	UserStatusActive          UserStatus = "active"
	UserStatusInactive        UserStatus = "inactive"
	UserStatusSuspended       UserStatus = "suspended"
	UserStatusPendingApproval UserStatus = "pending_approval"
	UserStatusRejected        UserStatus = "rejected"
)

var userTransitions = map[UserStatus][]UserStatus{
	UserStatusPendingApproval: {UserStatusActive, UserStatusRejected},
	UserStatusActive:          {UserStatusInactive, UserStatusSuspended},
	UserStatusInactive:        {UserStatusActive, UserStatusSuspended},
	UserStatusSuspended:       {UserStatusActive},
}

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended, UserStatusPendingApproval, UserStatusRejected:
		return true
	}
	return false
}

func (s UserStatus) CanTransitionTo(next UserStatus) bool {
	return containsStatus(userTransitions[s], next)
}

// UserProfile is the back-office view of an authenticated staff member
type UserProfile struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	AuthIdentityID  uint          `gorm:"not null;uniqueIndex:uk_user_profiles_auth_identity" json:"auth_identity_id"`
	AuthIdentity    *AuthIdentity `gorm:"foreignKey:AuthIdentityID;references:ID" json:"-"`
	Email           string        `gorm:"size:255;not null;uniqueIndex:uk_user_profiles_email" json:"email"`
	FirstName       string        `gorm:"size:128;not null" json:"first_name"`
	LastName        string        `gorm:"size:128;not null" json:"last_name"`
	Phone           *string       `gorm:"size:32" json:"phone,omitempty"`
	Department      *string       `gorm:"size:128" json:"department,omitempty"`
	JobTitle        *string       `gorm:"size:128" json:"job_title,omitempty"`
	AvatarURL       *string       `gorm:"size:1024" json:"avatar_url,omitempty"`
	RoleID          *uint         `gorm:"index:idx_user_profiles_role_id" json:"role_id,omitempty"`
	Role            *UserRole     `gorm:"foreignKey:RoleID;references:ID" json:"role,omitempty"`
	Status          UserStatus    `gorm:"type:varchar(20);not null;default:'pending_approval';index:idx_user_profiles_status" json:"status"`
	ApprovedBy      *uint         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time    `json:"approved_at,omitempty"`
	RejectionReason *string       `gorm:"type:text" json:"rejection_reason,omitempty"`
	LastLoginAt     *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// UserProfileFilter represents filter criteria for profile queries
type UserProfileFilter struct {
	ID             *uint
	AuthIdentityID *uint
	Email          *string
	RoleID         *uint
	Status         *UserStatus
}

func (p *UserProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
