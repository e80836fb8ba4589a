// Package businessflow contains the back-office use cases
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrInvalidCustomerStatus = errors.New("invalid customer status")
	ErrSubscriptionNotFound  = errors.New("subscription not found")

	// Invoice errors
	ErrInvoiceNotFound         = errors.New("invoice not found")
	ErrInvoiceItemsRequired    = errors.New("invoice requires at least one item")
	ErrInvalidInvoiceItem      = errors.New("invoice item requires a description, a positive quantity and a non-negative unit price")
	ErrInvalidTaxRate          = errors.New("tax rate must be between 0 and 100")
	ErrInvalidDiscount         = errors.New("discount must be non-negative and not exceed the invoice total")
	ErrDueDateBeforeIssueDate  = errors.New("due date cannot be before issue date")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidStatusTransition = errors.New("status transition not allowed")

	// Payment and refund errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentMethodNotFound  = errors.New("payment method not found")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrPaymentNotCompleted    = errors.New("only completed payments can be refunded")
	ErrRefundNotFound         = errors.New("refund not found")
	ErrRefundReasonRequired   = errors.New("refund reason is required")
	ErrRefundExceedsAvailable = errors.New("refund amount exceeds the refundable balance")

	// User management errors
	ErrUserNotFound            = errors.New("user not found")
	ErrRoleNotFound            = errors.New("role not found")
	ErrRoleInactive            = errors.New("role is inactive")
	ErrInvalidPermission       = errors.New("permission needs a resource and at least one action")
	ErrUserNotPending          = errors.New("user is not pending approval")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrCannotModifySelf        = errors.New("cannot change your own role or status")
	ErrInsufficientRoleLevel   = errors.New("cannot grant a role more privileged than your own")

	// Authentication errors
	ErrIncorrectPassword      = errors.New("incorrect email or password")
	ErrEmailAlreadyExists     = errors.New("email already exists")
	ErrAccountLocked          = errors.New("account is temporarily locked after too many failed attempts")
	ErrCaptchaRequired        = errors.New("captcha is required")
	ErrInvalidCaptcha         = errors.New("captcha answer is incorrect or expired")
	ErrAccountInactive        = errors.New("account is not active")
	ErrAccountPendingApproval = errors.New("account is pending approval")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrUnauthenticated        = errors.New("authentication required")
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")

	// Filter errors
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the outermost BusinessError in err's chain, or ""
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsInvoiceNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}

func IsPaymentNotFound(err error) bool {
	return errors.Is(err, ErrPaymentNotFound)
}

func IsRefundNotFound(err error) bool {
	return errors.Is(err, ErrRefundNotFound)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsRoleNotFound(err error) bool {
	return errors.Is(err, ErrRoleNotFound)
}

// IsNotFound reports whether err is any of the not-found sentinels
func IsNotFound(err error) bool {
	return IsCustomerNotFound(err) ||
		IsInvoiceNotFound(err) ||
		IsPaymentNotFound(err) ||
		IsRefundNotFound(err) ||
		IsUserNotFound(err) ||
		IsRoleNotFound(err) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPaymentMethodNotFound)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsRefundExceedsAvailable(err error) bool {
	return errors.Is(err, ErrRefundExceedsAvailable)
}

func IsPaymentNotCompleted(err error) bool {
	return errors.Is(err, ErrPaymentNotCompleted)
}

func IsInvalidTaxRate(err error) bool {
	return errors.Is(err, ErrInvalidTaxRate)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsAccountLocked(err error) bool {
	return errors.Is(err, ErrAccountLocked)
}

func IsCaptchaRequired(err error) bool {
	return errors.Is(err, ErrCaptchaRequired)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive) || errors.Is(err, ErrAccountPendingApproval)
}

// IsValidationError reports whether err was caused by rejected input rather than storage
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidCustomerStatus,
		ErrInvoiceItemsRequired,
		ErrInvalidInvoiceItem,
		ErrInvalidTaxRate,
		ErrInvalidDiscount,
		ErrDueDateBeforeIssueDate,
		ErrInvalidStatus,
		ErrInvalidAmount,
		ErrRefundReasonRequired,
		ErrRefundExceedsAvailable,
		ErrPaymentNotCompleted,
		ErrRejectionReasonRequired,
		ErrStartDateAfterEndDate,
		ErrRoleInactive,
		ErrInvalidPermission,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsForbidden reports whether err denies the action to the actor
func IsForbidden(err error) bool {
	return errors.Is(err, ErrCannotModifySelf) || errors.Is(err, ErrInsufficientRoleLevel)
}

// IsConflict reports whether err rejects a write that clashes with current state
func IsConflict(err error) bool {
	return IsInvalidStatusTransition(err) || errors.Is(err, ErrUserNotPending)
}
