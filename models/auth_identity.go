package models

import "time"

// AuthIdentity holds login credentials; profiles reference it one-to-one
type AuthIdentity struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"size:255;not null;uniqueIndex:uk_auth_identities_email" json:"email"`
	PasswordHash   string     `gorm:"size:255;not null" json:"-"`
	EmailConfirmed bool       `gorm:"not null;default:false" json:"email_confirmed"`
	LastSignInAt   *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (AuthIdentity) TableName() string {
	return "auth_identities"
}
