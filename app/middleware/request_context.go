package middleware

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/backoffice/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// Client environment headers sent by the back-office frontend
const (
	HeaderClientPlatform     = "X-Client-Platform"
	HeaderClientLanguage     = "X-Client-Language"
	HeaderClientTimezone     = "X-Client-Timezone"
	HeaderClientScreenWidth  = "X-Client-Screen-Width"
	HeaderClientScreenHeight = "X-Client-Screen-Height"
)

// ClientInfo snapshots the caller environment of c
func ClientInfo(c fiber.Ctx) utils.ClientInfo {
	language := c.Get(HeaderClientLanguage)
	if language == "" {
		// Accept-Language: en-US,en;q=0.9
		language, _, _ = strings.Cut(c.Get(fiber.HeaderAcceptLanguage), ",")
	}

	info := utils.ClientInfo{
		IPAddress:    c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
		RequestID:    requestID(c),
		Platform:     c.Get(HeaderClientPlatform),
		Language:     strings.TrimSpace(language),
		Timezone:     c.Get(HeaderClientTimezone),
		Referrer:     c.Get(fiber.HeaderReferer),
		ScreenWidth:  headerInt(c, HeaderClientScreenWidth),
		ScreenHeight: headerInt(c, HeaderClientScreenHeight),
		URL:          c.OriginalURL(),
		Method:       c.Method(),
	}
	if id, ok := GetUserIDFromContext(c); ok {
		info.UserID = &id
	}
	if email, ok := c.Locals(LocalUserEmail).(string); ok {
		info.UserEmail = email
	}
	return info
}

// WithRequest attaches the client info and authenticated user of c to ctx
func WithRequest(ctx context.Context, c fiber.Ctx) context.Context {
	info := ClientInfo(c)
	ctx = context.WithValue(ctx, utils.RequestIDKey, info.RequestID)
	ctx = context.WithValue(ctx, utils.UserAgentKey, info.UserAgent)
	ctx = context.WithValue(ctx, utils.IPAddressKey, info.IPAddress)
	ctx = context.WithValue(ctx, utils.EndpointKey, c.Path())
	if info.UserID != nil {
		ctx = utils.WithUser(ctx, *info.UserID, info.UserEmail)
	}
	if mark, ok := c.Locals(LocalAuditMark).(*utils.AuditMark); ok {
		ctx = utils.WithAuditMark(ctx, mark)
	}
	return utils.WithClientInfo(ctx, info)
}

// RequestContext derives a bounded business context for one request. The
// caller must call cancel once the business call returns.
func RequestContext(c fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = utils.DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return WithRequest(ctx, c), cancel
}

func requestID(c fiber.Ctx) string {
	if id := requestid.FromContext(c); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

func headerInt(c fiber.Ctx, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Get(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
