package utils

import (
	"time"
)

// Session time constants
const (
	// RememberMeTTL is how long a remembered login email is kept (30 days)
	RememberMeTTL = 30 * 24 * time.Hour
)

// DefaultRequestTimeout bounds every handler's business call
const DefaultRequestTimeout = 30 * time.Second

// Finance constants
const (
	DefaultCurrency = "USD"

	// InvoiceNumberPrefix prefixes generated invoice numbers (INV-YYYYMM-NNNNNN)
	InvoiceNumberPrefix = "INV"

	// PaymentReferencePrefix prefixes generated payment references
	PaymentReferencePrefix = "PAY"
)

// Context keys stored on every request context by the handlers
type contextKey string

const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	UserIDKey     contextKey = "user_id"
	UserEmailKey  contextKey = "user_email"
	ClientInfoKey contextKey = "client_info"
	AuditMarkKey  contextKey = "audit_mark"
)
