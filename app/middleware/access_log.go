package middleware

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/utils"
	"github.com/gofiber/fiber/v3"
)

const (
	redacted = "[REDACTED]"

	// LocalAuditMark holds the request's *utils.AuditMark
	LocalAuditMark = "audit_mark"
)

// sensitiveFields are never copied into an audit record
var sensitiveFields = map[string]struct{}{
	"password":         {},
	"current_password": {},
	"new_password":     {},
	"refresh_token":    {},
	"access_token":     {},
	"captcha_angle":    {},
}

// AccessLog records a mutating request once the handler has answered, unless
// the business flow behind it already wrote a record for the request.
// Rejected input (4xx other than 401 and 403) is not recorded.
// GET, HEAD and OPTIONS are left to the flows, which log reads they care about.
func AccessLog(logger *services.AccessLogger, withBody bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		action, mutating := methodAction(c.Method())
		if logger == nil || !mutating {
			return c.Next()
		}

		var body any
		if withBody {
			body = redactedBody(c.Body())
		}

		mark := &utils.AuditMark{}
		c.Locals(LocalAuditMark, mark)

		err := c.Next()

		if mark.IsSet() {
			return err
		}
		status := responseStatus(c, err)
		switch {
		case status >= fiber.StatusInternalServerError:
			action = models.AccessActionError
		case status == fiber.StatusUnauthorized, status == fiber.StatusForbidden:
			// denied attempts keep the verb
		case status >= fiber.StatusBadRequest:
			return err
		}
		logger.LogAction(WithRequest(context.Background(), c), services.AccessLogEntry{
			Action:       action,
			ResourceType: resourceType(routePath(c)),
			Method:       c.Method(),
			URL:          c.OriginalURL(),
			StatusCode:   status,
			RequestBody:  body,
			Metadata:     map[string]any{"source": "http"},
		})
		return err
	}
}

func methodAction(method string) (string, bool) {
	switch method {
	case fiber.MethodPost:
		return models.AccessActionCreate, true
	case fiber.MethodPut, fiber.MethodPatch:
		return models.AccessActionUpdate, true
	case fiber.MethodDelete:
		return models.AccessActionDelete, true
	default:
		return "", false
	}
}

// resourceType names the resource of a route: /api/v1/finance/invoices/:id/status is "invoices"
func resourceType(path string) string {
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		switch {
		case segment == "", segment == "api", segment == "v1", segment == "finance":
		case strings.HasPrefix(segment, ":"):
		default:
			return segment
		}
	}
	return "api"
}

// redactedBody decodes a JSON object body and masks credentials. Non-JSON bodies are dropped.
func redactedBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	for key := range body {
		if _, ok := sensitiveFields[strings.ToLower(key)]; ok {
			body[key] = redacted
		}
	}
	return body
}
