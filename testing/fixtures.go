package testing

import (
	"fmt"
	gotesting "testing"
	"time"

	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/utils"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// DefaultPassword is the plain-text password of every fixture identity
const DefaultPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	t  gotesting.TB
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(t gotesting.TB, db *TestDB) *TestFixtures {
	return &TestFixtures{t: t, DB: db}
}

func (tf *TestFixtures) create(v any) {
	tf.t.Helper()
	if err := tf.DB.DB.Create(v).Error; err != nil {
		tf.t.Fatalf("failed to create fixture %T: %v", v, err)
	}
}

// UniqueEmail returns a fake email that cannot collide within a test run. It is
// already normalized so it matches lookups by a typed-in address.
func UniqueEmail() string {
	return utils.NormalizeEmail(fmt.Sprintf("%s.%s@%s", uuid.NewString()[:8], gofakeit.Username(), gofakeit.DomainName()))
}

// CreateApplication creates an application with a fake name
func (tf *TestFixtures) CreateApplication() *models.Application {
	app := &models.Application{Name: gofakeit.AppName() + " " + uuid.NewString()[:6], IsActive: true}
	tf.create(app)
	return app
}

// CreateCustomer creates a customer with the given status and total spent
func (tf *TestFixtures) CreateCustomer(status models.CustomerStatus, totalSpent float64) *models.Customer {
	company := gofakeit.Company()
	customer := &models.Customer{
		Name:       gofakeit.Name(),
		Email:      UniqueEmail(),
		Company:    &company,
		Status:     status,
		TotalSpent: totalSpent,
	}
	tf.create(customer)
	return customer
}

// CreateSubscription creates a subscription for the customer on app
func (tf *TestFixtures) CreateSubscription(customer *models.Customer, app *models.Application, status models.SubscriptionStatus, cycle models.BillingCycle, price float64) *models.Subscription {
	sub := &models.Subscription{
		CustomerID:    customer.ID,
		ApplicationID: app.ID,
		PlanName:      gofakeit.RandomString([]string{"Starter", "Pro", "Business"}),
		Status:        status,
		BillingCycle:  cycle,
		Price:         price,
		StartDate:     time.Now().UTC().AddDate(0, -2, 0),
	}
	tf.create(sub)
	return sub
}

// CreateInvoice creates an invoice with a single line totalling amount
func (tf *TestFixtures) CreateInvoice(customer *models.Customer, status models.InvoiceStatus, amount float64, issue, due time.Time) *models.Invoice {
	invoice := &models.Invoice{
		InvoiceNumber: "INV-TEST-" + uuid.NewString()[:8],
		CustomerID:    customer.ID,
		Status:        status,
		Amount:        amount,
		TotalAmount:   amount,
		Currency:      "USD",
		IssueDate:     issue,
		DueDate:       due,
		Items: []models.InvoiceItem{{
			Description: gofakeit.Sentence(4),
			Quantity:    1,
			UnitPrice:   amount,
			LineTotal:   amount,
		}},
	}
	if status == models.InvoiceStatusPaid {
		paid := due
		invoice.PaidDate = &paid
	}
	tf.create(invoice)
	return invoice
}

// CreatePaymentMethod creates an active card payment method
func (tf *TestFixtures) CreatePaymentMethod() *models.PaymentMethod {
	last4 := gofakeit.Numerify("####")
	method := &models.PaymentMethod{Type: "card", LastFour: &last4, DisplayName: "Card ending " + last4, IsActive: true}
	tf.create(method)
	return method
}

// CreatePayment creates a payment for the customer, optionally against an invoice
func (tf *TestFixtures) CreatePayment(customer *models.Customer, invoice *models.Invoice, status models.PaymentStatus, amount float64, paidAt time.Time) *models.PaymentTransaction {
	payment := &models.PaymentTransaction{
		Reference:   "PAY-TEST-" + uuid.NewString()[:8],
		CustomerID:  customer.ID,
		Amount:      amount,
		Currency:    "USD",
		Status:      status,
		PaymentDate: paidAt,
	}
	if invoice != nil {
		payment.InvoiceID = &invoice.ID
	}
	tf.create(payment)
	return payment
}

// CreateRefund creates a refund against a payment
func (tf *TestFixtures) CreateRefund(payment *models.PaymentTransaction, status models.RefundStatus, amount float64) *models.Refund {
	refund := &models.Refund{
		PaymentTransactionID: payment.ID,
		InvoiceID:            payment.InvoiceID,
		Amount:               amount,
		Reason:               gofakeit.Sentence(5),
		Status:               status,
	}
	tf.create(refund)
	return refund
}

// CreateRole creates a role with the given level and permissions
func (tf *TestFixtures) CreateRole(name string, level int, permissions ...models.Permission) *models.UserRole {
	role := &models.UserRole{
		Name:        name,
		DisplayName: name,
		Level:       level,
		Permissions: datatypes.NewJSONType(permissions),
		IsActive:    true,
	}
	tf.create(role)
	return role
}

// CreateUser creates an identity with DefaultPassword and its profile
func (tf *TestFixtures) CreateUser(role *models.UserRole, status models.UserStatus) (*models.AuthIdentity, *models.UserProfile) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		tf.t.Fatalf("failed to hash password: %v", err)
	}
	email := UniqueEmail()
	identity := &models.AuthIdentity{Email: email, PasswordHash: string(hash)}
	tf.create(identity)

	profile := &models.UserProfile{
		AuthIdentityID: identity.ID,
		Email:          email,
		FirstName:      gofakeit.FirstName(),
		LastName:       gofakeit.LastName(),
		Status:         status,
	}
	if role != nil {
		profile.RoleID = &role.ID
	}
	tf.create(profile)
	return identity, profile
}
