package utils

import (
	"context"
	"sync/atomic"
)

// ClientInfo is the caller context snapshot attached to every request
type ClientInfo struct {
	IPAddress    string
	UserAgent    string
	RequestID    string
	Platform     string
	Language     string
	Timezone     string
	Referrer     string
	ScreenWidth  int
	ScreenHeight int
	URL          string
	Method       string
	UserID       *uint
	UserEmail    string
}

// WithClientInfo stores info on ctx
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ClientInfoKey, info)
}

// ClientInfoFromContext returns the stored ClientInfo, falling back to the
// individual request keys when none was stored
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	if ctx == nil {
		return ClientInfo{}
	}
	if info, ok := ctx.Value(ClientInfoKey).(ClientInfo); ok {
		if info.UserID == nil {
			info.UserID = UserIDFromContext(ctx)
		}
		if info.UserEmail == "" {
			info.UserEmail = StringFromContext(ctx, UserEmailKey)
		}
		return info
	}
	return ClientInfo{
		IPAddress: StringFromContext(ctx, IPAddressKey),
		UserAgent: StringFromContext(ctx, UserAgentKey),
		RequestID: StringFromContext(ctx, RequestIDKey),
		URL:       StringFromContext(ctx, EndpointKey),
		UserID:    UserIDFromContext(ctx),
		UserEmail: StringFromContext(ctx, UserEmailKey),
	}
}

// WithUser stores the authenticated user on ctx
func WithUser(ctx context.Context, userID uint, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserEmailKey, email)
}

// AuditMark is shared by everything handling one request. It is set once an
// access log record has been written for that request.
type AuditMark struct {
	set atomic.Bool
}

func (m *AuditMark) Set() {
	if m != nil {
		m.set.Store(true)
	}
}

func (m *AuditMark) IsSet() bool {
	return m != nil && m.set.Load()
}

// WithAuditMark stores m on ctx
func WithAuditMark(ctx context.Context, m *AuditMark) context.Context {
	return context.WithValue(ctx, AuditMarkKey, m)
}

// AuditMarkFromContext returns the request's mark, or nil outside a request
func AuditMarkFromContext(ctx context.Context) *AuditMark {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(AuditMarkKey).(*AuditMark)
	return m
}
