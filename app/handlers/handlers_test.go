package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/backoffice/app/dto"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{businessflow.NewBusinessError("LOGIN_FAILED", "Login failed", businessflow.ErrAccountLocked), fiber.StatusLocked, "ACCOUNT_LOCKED"},
		{businessflow.ErrCaptchaRequired, fiber.StatusPreconditionRequired, "CAPTCHA_REQUIRED"},
		{businessflow.ErrIncorrectPassword, fiber.StatusUnauthorized, "INCORRECT_CREDENTIALS"},
		{businessflow.ErrAccountPendingApproval, fiber.StatusForbidden, "ACCOUNT_PENDING_APPROVAL"},
		{businessflow.NewBusinessError("X", "x", businessflow.ErrInvalidStatusTransition), fiber.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{businessflow.ErrRefundExceedsAvailable, fiber.StatusBadRequest, "REFUND_EXCEEDS_AVAILABLE"},
		{businessflow.ErrInvoiceNotFound, fiber.StatusNotFound, "INVOICE_NOT_FOUND"},
		{businessflow.ErrInvalidTaxRate, fiber.StatusBadRequest, "VALIDATION_ERROR"},
		{businessflow.ErrCannotModifySelf, fiber.StatusForbidden, "CANNOT_MODIFY_SELF"},
		{errors.New("connection reset"), fiber.StatusInternalServerError, "FALLBACK"},
	}
	for _, tc := range cases {
		status, code := statusFor(tc.err, "FALLBACK")
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	h := newBaseHandler()
	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/fail", func(c fiber.Ctx) error {
		return h.FlowError(c, businessflow.ErrInvoiceNotFound, "GET_INVOICE_FAILED", "Failed to retrieve invoice")
	})

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body struct {
		Success bool            `json:"success"`
		Error   dto.ErrorDetail `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "INVOICE_NOT_FOUND", body.Error.Code)
	assert.Equal(t, "req-42", body.Error.RequestID)
}

func TestNewListResult(t *testing.T) {
	empty := dto.NewListResult[dto.AccessLogDTO](nil)
	raw, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"count":0}`, string(raw))

	two := dto.NewListResult([]string{"a", "b"})
	assert.Equal(t, 2, two.Count)
}

func TestBusinessMessage(t *testing.T) {
	err := businessflow.NewBusinessError("CREATE_REFUND_FAILED", "Failed to create refund", businessflow.ErrRefundExceedsAvailable)
	assert.Equal(t, businessflow.ErrRefundExceedsAvailable.Error(), businessMessage(err))
	assert.Equal(t, "plain", businessMessage(errors.New("plain")))
}

func TestPasswordStrength(t *testing.T) {
	v := newValidator()
	assert.NoError(t, v.Struct(&dto.SignupRequest{Email: "a@example.com", Password: "SecurePass123", FirstName: "A", LastName: "B"}))

	err := v.Struct(&dto.SignupRequest{Email: "a@example.com", Password: "securepass", FirstName: "A", LastName: "B"})
	require.Error(t, err)
	assert.Contains(t, validationMessages(err), "Password must contain at least 1 uppercase letter and 1 number")
}

func TestQueryHelpers(t *testing.T) {
	app := fiber.New()
	app.Get("/items/:id", func(c fiber.Ctx) error {
		id, ok := pathID(c, "id")
		limit, limitErr := queryInt(c, "limit", 5, 1, 50)
		customer, customerErr := queryUint(c, "customer_id")
		due, dueErr := queryTime(c, "due")
		return c.JSON(fiber.Map{
			"id":           id,
			"id_ok":        ok,
			"limit":        limit,
			"limit_ok":     limitErr == nil,
			"customer":     customer,
			"customer_ok":  customerErr == nil,
			"due":          due,
			"due_ok":       dueErr == nil,
			"status_given": queryString(c, "status") != nil,
		})
	})

	get := func(target string) map[string]any {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	body := get("/items/7?limit=20&customer_id=3&due=2026-03-01&status=%20paid%20")
	assert.EqualValues(t, 7, body["id"])
	assert.Equal(t, true, body["id_ok"])
	assert.EqualValues(t, 20, body["limit"])
	assert.EqualValues(t, 3, body["customer"])
	assert.Equal(t, "2026-03-01T00:00:00Z", body["due"])
	assert.Equal(t, true, body["status_given"])

	body = get("/items/0?limit=99&customer_id=-1&due=yesterday")
	assert.Equal(t, false, body["id_ok"])
	assert.Equal(t, false, body["limit_ok"])
	assert.Equal(t, false, body["customer_ok"])
	assert.Equal(t, false, body["due_ok"])

	body = get("/items/1")
	assert.EqualValues(t, 5, body["limit"])
	assert.Nil(t, body["customer"])
	assert.Equal(t, false, body["status_given"])
}

func TestSendExport(t *testing.T) {
	app := fiber.New()
	app.Get("/export", func(c fiber.Ctx) error {
		return sendExport(c, &dto.ExportFile{
			FileName:    "invoices.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        []byte("xlsx"),
			Rows:        2,
			ArchivedAt:  "s3://reports/invoices.xlsx",
		})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/export", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="invoices.xlsx"`, resp.Header.Get(fiber.HeaderContentDisposition))
	assert.Equal(t, "2", resp.Header.Get("X-Export-Rows"))
	assert.Equal(t, "s3://reports/invoices.xlsx", resp.Header.Get("X-Export-Archive"))
}

type stubCreateUserFlow struct {
	err  error
	seen *dto.CreateUserRequest
}

func (f *stubCreateUserFlow) CreateUser(_ context.Context, req *dto.CreateUserRequest) (*dto.CreateUserResponse, error) {
	f.seen = req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CreateUserResponse{Success: true, User: dto.CreatedUser{ID: 9, Email: req.Email}}, nil
}

func functionsApp(flow businessflow.CreateUserFlow) *fiber.App {
	app := fiber.New()
	h := NewFunctionsHandler(flow, nil, nil, "secret")
	app.All("/create-user", h.CreateUser)
	return app
}

func callFunction(t *testing.T, app *fiber.App, method, bearer, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, "/create-user", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

const validCreateUser = `{"email":"new@example.com","password":"SecurePass123","first_name":"New","last_name":"User","role_id":2,"status":"active"}`

func TestFunctionsHandler_CreateUser(t *testing.T) {
	flow := &stubCreateUserFlow{}
	app := functionsApp(flow)

	status, body := callFunction(t, app, http.MethodPut, "secret", validCreateUser)
	assert.Equal(t, fiber.StatusMethodNotAllowed, status)
	assert.Equal(t, "Method not allowed", body["error"])

	status, _ = callFunction(t, app, http.MethodPost, "", validCreateUser)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = callFunction(t, app, http.MethodPost, "wrong", validCreateUser)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = callFunction(t, app, http.MethodPost, "secret", `{"email":"bad","password":"x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "Invalid email format")

	status, body = callFunction(t, app, http.MethodPost, "secret", validCreateUser)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "new@example.com", flow.seen.Email)
}

func TestFunctionsHandler_CreateUserErrors(t *testing.T) {
	flow := &stubCreateUserFlow{err: businessflow.NewBusinessError("CREATE_USER_FAILED", "Failed to create user", businessflow.ErrEmailAlreadyExists)}
	app := functionsApp(flow)
	status, body := callFunction(t, app, http.MethodPost, "secret", validCreateUser)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, businessflow.ErrEmailAlreadyExists.Error(), body["error"])

	flow.err = businessflow.NewBusinessError("CREATE_USER_FAILED", "Failed to create user", businessflow.ErrRoleNotFound)
	status, _ = callFunction(t, app, http.MethodPost, "secret", validCreateUser)
	assert.Equal(t, fiber.StatusBadRequest, status)

	flow.err = businessflow.NewBusinessError("CREATE_USER_FAILED", "Failed to create user", errors.New("disk full"))
	status, body = callFunction(t, app, http.MethodPost, "secret", validCreateUser)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Failed to create user", body["error"])
}

func TestFunctionsHandler_Unconfigured(t *testing.T) {
	app := fiber.New()
	app.All("/create-user", NewFunctionsHandler(nil, nil, nil, "").CreateUser)
	req := httptest.NewRequest(http.MethodPost, "/create-user", strings.NewReader(validCreateUser))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
