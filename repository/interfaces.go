// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/backoffice/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// Updatable is implemented by repositories whose rows may change after insert
type Updatable interface {
	UpdateColumns(ctx context.Context, id uint, updates map[string]any) error
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	Updatable
	ByEmail(ctx context.Context, email string) (*models.Customer, error)
	ListWithSubscriptions(ctx context.Context, filter models.CustomerFilter) ([]*models.Customer, error)
	ByIDWithSubscriptions(ctx context.Context, id uint) (*models.Customer, error)
}

// SubscriptionRepository defines operations for subscriptions
type SubscriptionRepository interface {
	Repository[models.Subscription, models.SubscriptionFilter]
	ListByCustomer(ctx context.Context, customerID uint) ([]*models.Subscription, error)
}

// InvoiceRepository defines operations for invoices and their items
type InvoiceRepository interface {
	Repository[models.Invoice, models.InvoiceFilter]
	Updatable
	ByIDWithDetails(ctx context.Context, id uint) (*models.Invoice, error)
	ByIDForUpdate(ctx context.Context, id uint) (*models.Invoice, error)
	ListWithDetails(ctx context.Context, filter models.InvoiceFilter) ([]*models.Invoice, error)
	CountByNumberPrefix(ctx context.Context, prefix string) (int64, error)
}

// SequenceCounterRepository hands out values from named monotonic counters
type SequenceCounterRepository interface {
	Next(ctx context.Context, name string, floor int64) (int64, error)
}

// PaymentMethodRepository defines operations for payment methods
type PaymentMethodRepository interface {
	Repository[models.PaymentMethod, models.PaymentMethodFilter]
	ListActive(ctx context.Context) ([]*models.PaymentMethod, error)
}

// PaymentTransactionRepository defines operations for payment transactions
type PaymentTransactionRepository interface {
	Repository[models.PaymentTransaction, models.PaymentTransactionFilter]
	Updatable
	ByIDForUpdate(ctx context.Context, id uint) (*models.PaymentTransaction, error)
	ByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	ListWithDetails(ctx context.Context, filter models.PaymentTransactionFilter) ([]*models.PaymentTransaction, error)
}

// RefundRepository defines operations for refunds
type RefundRepository interface {
	Repository[models.Refund, models.RefundFilter]
	Updatable
	ByIDForUpdate(ctx context.Context, id uint) (*models.Refund, error)
	ListWithDetails(ctx context.Context, filter models.RefundFilter) ([]*models.Refund, error)
	SumCompletedByPayment(ctx context.Context, paymentID uint) (float64, error)
}

// UserRoleRepository defines operations for roles
type UserRoleRepository interface {
	Repository[models.UserRole, struct{}]
	Updatable
	ByName(ctx context.Context, name string) (*models.UserRole, error)
	ListAll(ctx context.Context) ([]*models.UserRole, error)
}

// UserProfileRepository defines operations for staff profiles
type UserProfileRepository interface {
	Repository[models.UserProfile, models.UserProfileFilter]
	Updatable
	ByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	ByAuthIdentityID(ctx context.Context, authIdentityID uint) (*models.UserProfile, error)
	ByIDWithRole(ctx context.Context, id uint) (*models.UserProfile, error)
	ListWithRole(ctx context.Context, filter models.UserProfileFilter) ([]*models.UserProfile, error)
}

// AuthIdentityRepository defines operations for login identities
type AuthIdentityRepository interface {
	Repository[models.AuthIdentity, struct{}]
	Updatable
	ByEmail(ctx context.Context, email string) (*models.AuthIdentity, error)
	Delete(ctx context.Context, id uint) error
}

// AccessLogRepository stores immutable access logs. There is no update or delete operation.
type AccessLogRepository interface {
	Repository[models.AccessLog, models.AccessLogFilter]
	ListRecent(ctx context.Context, filter models.AccessLogFilter, limit int) ([]*models.AccessLog, error)
}
