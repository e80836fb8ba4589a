// Package models contains domain entities of the back-office
package models

import (
	"time"
)

// CustomerStatus is the lifecycle state of a tenant customer
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
	CustomerStatusChurned  CustomerStatus = "churned"
)

// Valid reports whether s is a known customer status
func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerStatusActive, CustomerStatusInactive, CustomerStatusChurned:
		return true
	}
	return false
}

type Customer struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:255;not null;index:idx_customers_name" json:"name"`
	Email      string         `gorm:"size:255;not null;uniqueIndex:uk_customers_email" json:"email"`
	Company    *string        `gorm:"size:255" json:"company,omitempty"`
	Phone      *string        `gorm:"size:32" json:"phone,omitempty"`
	Status     CustomerStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_customers_status" json:"status"`
	TotalSpent float64        `gorm:"type:decimal(14,2);not null;default:0" json:"total_spent"`
	ChurnedAt  *time.Time     `json:"churned_at,omitempty"`
	CreatedAt  time.Time      `gorm:"index:idx_customers_created_at" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	Subscriptions []Subscription `gorm:"foreignKey:CustomerID" json:"subscriptions,omitempty"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID            *uint
	Email         *string
	Status        *CustomerStatus
	Search        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsActive reports whether the customer is currently active
func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}
