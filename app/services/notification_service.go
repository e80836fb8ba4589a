package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// NotificationService sends account lifecycle emails to staff users
type NotificationService interface {
	SendEmail(ctx context.Context, email, subject, message string) error
	SendApprovalEmail(ctx context.Context, email, fullName, roleName string) error
	SendRejectionEmail(ctx context.Context, email, fullName, reason string) error
}

// EmailProvider delivers one message
type EmailProvider interface {
	SendEmail(ctx context.Context, from, to, subject, body string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
	fromEmail     string
	fromName      string
}

// NewNotificationService creates a new notification service
func NewNotificationService(emailProvider EmailProvider, fromEmail, fromName string) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
		fromEmail:     fromEmail,
		fromName:      fromName,
	}
}

func (s *NotificationServiceImpl) from() string {
	if s.fromName == "" {
		return s.fromEmail
	}
	return fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(ctx context.Context, email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(ctx, s.from(), email, subject, message)
}

func (s *NotificationServiceImpl) SendApprovalEmail(ctx context.Context, email, fullName, roleName string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour back-office account has been approved.", greetingName(fullName, email))
	if roleName != "" {
		body += fmt.Sprintf(" You have been assigned the %s role.", roleName)
	}
	body += "\n\nYou can now sign in."
	return s.SendEmail(ctx, email, "Your account has been approved", body)
}

func (s *NotificationServiceImpl) SendRejectionEmail(ctx context.Context, email, fullName, reason string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour back-office account request was not approved.", greetingName(fullName, email))
	if reason != "" {
		body += "\n\nReason: " + reason
	}
	return s.SendEmail(ctx, email, "Your account request", body)
}

func greetingName(fullName, email string) string {
	if strings.TrimSpace(fullName) != "" {
		return fullName
	}
	return email
}

// LogEmailProvider writes messages to the structured log instead of delivering them
type LogEmailProvider struct{}

func NewLogEmailProvider() EmailProvider {
	return &LogEmailProvider{}
}

func (p *LogEmailProvider) SendEmail(ctx context.Context, from, to, subject, body string) error {
	slog.InfoContext(ctx, "Email sent", "from", from, "to", to, "subject", subject, "length", len(body))
	return nil
}
