// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/utils"
)

// auditResult records a mutation outcome: the verb on success, the error verb on failure
func auditResult(ctx context.Context, logger *services.AccessLogger, err error, resourceType string, onSuccess func()) {
	if logger == nil {
		return
	}
	if err != nil {
		if IsValidationError(err) {
			// rejected input is not an operational error
			return
		}
		logger.LogError(ctx, resourceType, err, map[string]any{"code": ErrorCode(err)})
		return
	}
	onSuccess()
}

// actorID returns the authenticated user id on ctx, or nil
func actorID(ctx context.Context) *uint {
	return utils.UserIDFromContext(ctx)
}

func ToSubscriptionDTO(s *models.Subscription) dto.SubscriptionDTO {
	return dto.SubscriptionDTO{
		ID:            s.ID,
		ApplicationID: s.ApplicationID,
		AppName:       s.AppName(),
		PlanName:      s.PlanName,
		Status:        string(s.Status),
		BillingCycle:  string(s.BillingCycle),
		Price:         s.Price,
		MonthlyPrice:  s.MonthlyPrice(),
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
	}
}

func ToCustomerDTO(c *models.Customer) dto.CustomerDTO {
	count, monthly := activeSubscriptions(c)
	subs := make([]dto.SubscriptionDTO, 0, len(c.Subscriptions))
	for i := range c.Subscriptions {
		subs = append(subs, ToSubscriptionDTO(&c.Subscriptions[i]))
	}
	return dto.CustomerDTO{
		ID:                  c.ID,
		Name:                c.Name,
		Email:               c.Email,
		Company:             c.Company,
		Phone:               c.Phone,
		Status:              string(c.Status),
		TotalSpent:          c.TotalSpent,
		ActiveSubscriptions: count,
		MonthlyRevenue:      monthly,
		ChurnedAt:           c.ChurnedAt,
		CreatedAt:           c.CreatedAt,
		Subscriptions:       subs,
	}
}

func ToInvoiceDTO(inv *models.Invoice) dto.InvoiceDTO {
	out := dto.InvoiceDTO{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		CustomerID:     inv.CustomerID,
		SubscriptionID: inv.SubscriptionID,
		Status:         string(inv.Status),
		Amount:         inv.Amount,
		TaxRate:        inv.TaxRate,
		TaxAmount:      inv.TaxAmount,
		DiscountAmount: inv.DiscountAmount,
		TotalAmount:    inv.TotalAmount,
		Currency:       inv.Currency,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		PaidDate:       inv.PaidDate,
		Notes:          inv.Notes,
		CreatedAt:      inv.CreatedAt,
		Items:          make([]dto.InvoiceItemDTO, 0, len(inv.Items)),
	}
	if inv.Customer != nil {
		out.CustomerName = inv.Customer.Name
		out.CustomerEmail = inv.Customer.Email
	}
	if inv.Subscription != nil {
		out.AppName = inv.Subscription.AppName()
		out.PlanName = inv.Subscription.PlanName
	}
	for _, item := range inv.Items {
		out.Items = append(out.Items, dto.InvoiceItemDTO{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return out
}

func ToPaymentDTO(p *models.PaymentTransaction) dto.PaymentDTO {
	out := dto.PaymentDTO{
		ID:              p.ID,
		Reference:       p.Reference,
		CustomerID:      p.CustomerID,
		InvoiceID:       p.InvoiceID,
		PaymentMethodID: p.PaymentMethodID,
		Amount:          p.Amount,
		RefundedAmount:  RefundedAmount(p),
		NetAmount:       NetAmount(p),
		Currency:        p.Currency,
		Status:          string(p.Status),
		DisplayStatus:   DisplayPaymentStatus(p),
		PaymentDate:     p.PaymentDate,
		ProcessedAt:     p.ProcessedAt,
		FailureReason:   p.FailureReason,
		Notes:           p.Notes,
	}
	if p.Customer != nil {
		out.CustomerName = p.Customer.Name
	}
	if p.Invoice != nil {
		out.InvoiceNumber = p.Invoice.InvoiceNumber
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = p.PaymentMethod.DisplayName
	}
	return out
}

func ToRefundDTO(r *models.Refund) dto.RefundDTO {
	out := dto.RefundDTO{
		ID:                   r.ID,
		PaymentTransactionID: r.PaymentTransactionID,
		InvoiceID:            r.InvoiceID,
		Amount:               r.Amount,
		Reason:               r.Reason,
		Status:               string(r.Status),
		ProcessedAt:          r.ProcessedAt,
		ProcessedBy:          r.ProcessedBy,
		CreatedAt:            r.CreatedAt,
	}
	if r.PaymentTransaction != nil {
		out.PaymentReference = r.PaymentTransaction.Reference
		if r.PaymentTransaction.Customer != nil {
			out.CustomerName = r.PaymentTransaction.Customer.Name
		}
	}
	if r.Invoice != nil {
		out.InvoiceNumber = r.Invoice.InvoiceNumber
	}
	return out
}

func ToPaymentMethodDTO(m *models.PaymentMethod) dto.PaymentMethodDTO {
	return dto.PaymentMethodDTO{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Type:        m.Type,
		Provider:    m.Provider,
		LastFour:    m.LastFour,
		DisplayName: m.DisplayName,
		IsDefault:   m.IsDefault,
	}
}

func ToRoleDTO(r *models.UserRole) dto.RoleDTO {
	perms := r.Permissions.Data()
	out := dto.RoleDTO{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		Level:       r.Level,
		IsActive:    r.IsActive,
		Permissions: make([]dto.PermissionDTO, 0, len(perms)),
	}
	for _, p := range perms {
		out.Permissions = append(out.Permissions, dto.PermissionDTO{Resource: p.Resource, Actions: p.Actions})
	}
	return out
}

func ToUserProfileDTO(p *models.UserProfile) dto.UserProfileDTO {
	out := dto.UserProfileDTO{
		ID:              p.ID,
		Email:           p.Email,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		FullName:        p.FullName(),
		Phone:           p.Phone,
		Department:      p.Department,
		JobTitle:        p.JobTitle,
		AvatarURL:       p.AvatarURL,
		RoleID:          p.RoleID,
		Status:          string(p.Status),
		ApprovedBy:      p.ApprovedBy,
		ApprovedAt:      p.ApprovedAt,
		RejectionReason: p.RejectionReason,
		LastLoginAt:     p.LastLoginAt,
		CreatedAt:       p.CreatedAt,
	}
	if p.Role != nil {
		out.RoleName = p.Role.DisplayName
		out.RoleLevel = &p.Role.Level
	}
	return out
}

func ToAccessLogDTO(l *models.AccessLog) dto.AccessLogDTO {
	return dto.AccessLogDTO{
		ID:           l.ID,
		UserID:       l.UserID,
		UserEmail:    l.UserEmail,
		Action:       l.Action,
		ResourceType: l.ResourceType,
		ResourceID:   l.ResourceID,
		ResourceName: l.ResourceName,
		Method:       l.Method,
		URL:          l.URL,
		StatusCode:   l.StatusCode,
		IPAddress:    l.IPAddress,
		UserAgent:    l.UserAgent,
		SessionID:    l.SessionID,
		BrowserInfo:  l.BrowserInfo.Data(),
		Metadata:     map[string]any(l.Metadata),
		CreatedAt:    l.CreatedAt,
	}
}

// mapSlice converts every element of in with fn
func mapSlice[T any, R any](in []*T, fn func(*T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

func notFound(sentinel error, id uint) error {
	return fmt.Errorf("%w: %d", sentinel, id)
}
