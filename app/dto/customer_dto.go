package dto

import "time"

// CustomerFilterRequest carries the customer list query parameters
type CustomerFilterRequest struct {
	Status *string
	Search *string
}

// SubscriptionDTO is a subscription with its application name lifted
type SubscriptionDTO struct {
	ID            uint       `json:"id"`
	ApplicationID uint       `json:"application_id"`
	AppName       string     `json:"app_name"`
	PlanName      string     `json:"plan_name"`
	Status        string     `json:"status"`
	BillingCycle  string     `json:"billing_cycle"`
	Price         float64    `json:"price"`
	MonthlyPrice  float64    `json:"monthly_price"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// CustomerDTO is a customer with its subscriptions
type CustomerDTO struct {
	ID                  uint              `json:"id"`
	Name                string            `json:"name"`
	Email               string            `json:"email"`
	Company             *string           `json:"company,omitempty"`
	Phone               *string           `json:"phone,omitempty"`
	Status              string            `json:"status"`
	TotalSpent          float64           `json:"total_spent"`
	ActiveSubscriptions int               `json:"active_subscriptions"`
	MonthlyRevenue      float64           `json:"monthly_revenue"`
	ChurnedAt           *time.Time        `json:"churned_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	Subscriptions       []SubscriptionDTO `json:"subscriptions"`
}

// UpdateCustomerStatusRequest changes the lifecycle state of a customer
type UpdateCustomerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive churned" example:"churned"`
}

// CustomerMetrics is the customer dashboard headline figures
type CustomerMetrics struct {
	TotalCustomers       int               `json:"total_customers"`
	ActiveCustomers      int               `json:"active_customers"`
	ChurnedCustomers     int               `json:"churned_customers"`
	NewCustomers         int               `json:"new_customers"` // last 30 days
	TotalRevenue         float64           `json:"total_revenue"`
	AverageCustomerValue float64           `json:"average_customer_value"`
	ChurnRate            float64           `json:"churn_rate"`  // percent
	GrowthRate           float64           `json:"growth_rate"` // percent, vs previous 30 days
	Formatted            map[string]string `json:"formatted,omitempty"`
}

// TopCustomer is one tile of the top customers ranking
type TopCustomer struct {
	Rank                int     `json:"rank"`
	CustomerID          uint    `json:"customer_id"`
	Name                string  `json:"name"`
	Company             *string `json:"company,omitempty"`
	Status              string  `json:"status"`
	TotalRevenue        float64 `json:"total_revenue"`
	MonthlyRevenue      float64 `json:"monthly_revenue"`
	ActiveSubscriptions int     `json:"active_subscriptions"`
	Progress            float64 `json:"progress"` // percent of the monthly revenue target, capped at 100
}

// PaymentReliability summarises how punctually a customer pays
type PaymentReliability struct {
	CustomerID uint    `json:"customer_id"`
	OnTime     int     `json:"on_time"`
	Late       int     `json:"late"`
	Failed     int     `json:"failed"`
	Rate       float64 `json:"rate"` // percent
}
