package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

type Subscription struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	CustomerID    uint               `gorm:"not null;index:idx_subscriptions_customer_id" json:"customer_id"`
	Customer      *Customer          `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	ApplicationID uint               `gorm:"not null;index:idx_subscriptions_application_id" json:"application_id"`
	Application   *Application       `gorm:"foreignKey:ApplicationID;references:ID" json:"application,omitempty"`
	PlanName      string             `gorm:"size:100;not null" json:"plan_name"`
	Status        SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_subscriptions_status" json:"status"`
	BillingCycle  BillingCycle       `gorm:"type:varchar(20);not null;default:'monthly'" json:"billing_cycle"`
	Price         float64            `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	StartDate     time.Time          `gorm:"not null" json:"start_date"`
	EndDate       *time.Time         `json:"end_date,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// MonthlyPrice normalises the subscription price to a monthly amount
func (s *Subscription) MonthlyPrice() float64 {
	if s.BillingCycle == BillingCycleYearly {
		return s.Price / 12
	}
	return s.Price
}

// AppName returns the related application name, or "" when not loaded
func (s *Subscription) AppName() string {
	if s.Application == nil {
		return ""
	}
	return s.Application.Name
}

// SubscriptionFilter represents filter criteria for subscription queries
type SubscriptionFilter struct {
	CustomerID    *uint
	ApplicationID *uint
	Status        *SubscriptionStatus
}
