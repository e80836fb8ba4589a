package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedEmail struct {
	from, to, subject, body string
}

type captureEmailProvider struct {
	sent []capturedEmail
}

func (p *captureEmailProvider) SendEmail(_ context.Context, from, to, subject, body string) error {
	p.sent = append(p.sent, capturedEmail{from, to, subject, body})
	return nil
}

func TestNotificationService_ApprovalAndRejection(t *testing.T) {
	provider := &captureEmailProvider{}
	service := NewNotificationService(provider, "noreply@example.com", "Back Office")
	ctx := context.Background()

	require.NoError(t, service.SendApprovalEmail(ctx, "jane@example.com", "Jane Doe", "Finance"))
	require.NoError(t, service.SendRejectionEmail(ctx, "joe@example.com", "", "unknown department"))

	require.Len(t, provider.sent, 2)
	assert.Equal(t, "Back Office <noreply@example.com>", provider.sent[0].from)
	assert.Equal(t, "jane@example.com", provider.sent[0].to)
	assert.Contains(t, provider.sent[0].body, "Jane Doe")
	assert.Contains(t, provider.sent[0].body, "Finance role")

	assert.Contains(t, provider.sent[1].body, "Hello joe@example.com")
	assert.Contains(t, provider.sent[1].body, "Reason: unknown department")
}

func TestNotificationService_InvalidAddress(t *testing.T) {
	service := NewNotificationService(&captureEmailProvider{}, "noreply@example.com", "")

	for _, email := range []string{"", "no-at-sign", "@example.com", "trailing@"} {
		assert.Error(t, service.SendEmail(context.Background(), email, "s", "b"), email)
	}
}

func TestNotificationService_NoProvider(t *testing.T) {
	service := NewNotificationService(nil, "noreply@example.com", "")
	assert.Error(t, service.SendEmail(context.Background(), "a@example.com", "s", "b"))
}
