package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Permission grants a set of actions on one resource
type Permission struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

// UserRole groups permissions; a lower Level is more privileged
type UserRole struct {
	ID          uint                             `gorm:"primaryKey" json:"id"`
	Name        string                           `gorm:"size:64;not null;uniqueIndex:uk_user_roles_name" json:"name"`
	DisplayName string                           `gorm:"size:128;not null" json:"display_name"`
	Description *string                          `gorm:"type:text" json:"description,omitempty"`
	Level       int                              `gorm:"not null;default:100;index:idx_user_roles_level" json:"level"`
	Permissions datatypes.JSONType[[]Permission] `json:"permissions"`
	IsActive    bool                             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time                        `json:"created_at"`
	UpdatedAt   time.Time                        `json:"updated_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// Allows reports whether the role grants action on resource.
// A "*" resource or action matches anything.
func (r *UserRole) Allows(resource, action string) bool {
	for _, p := range r.Permissions.Data() {
		if p.Resource != resource && p.Resource != "*" {
			continue
		}
		if slices.Contains(p.Actions, action) || slices.Contains(p.Actions, "*") {
			return true
		}
	}
	return false
}

// OutranksOrEqual reports whether r is at least as privileged as other
func (r *UserRole) OutranksOrEqual(other *UserRole) bool {
	return r.Level <= other.Level
}
