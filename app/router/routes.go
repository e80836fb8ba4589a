// Package router provides HTTP routing, middleware configuration, and server setup for the back-office API
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/handlers"
	"github.com/amirphl/backoffice/app/middleware"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/config"
	"github.com/amirphl/backoffice/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth           handlers.AuthHandlerInterface
	Finance        handlers.FinanceHandlerInterface
	Customer       handlers.CustomerHandlerInterface
	AccessLog      handlers.AccessLogHandlerInterface
	UserManagement handlers.UserManagementHandlerInterface
	Functions      handlers.FunctionsHandlerInterface
}

// Dependencies are the collaborators the router needs besides handlers.
// DB and Cache are only pinged by the health check and may be nil.
type Dependencies struct {
	AuthMiddleware *middleware.AuthMiddleware
	AccessLogger   *services.AccessLogger
	DB             *gorm.DB
	Cache          redis.UniversalClient
	LogWriter      io.Writer
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	deps     Dependencies
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, deps Dependencies) *FiberRouter {
	fiberCfg := fiber.Config{
		AppName:      "Backoffice API",
		ServerHeader: "Backoffice",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	}
	if cfg.Server.ProxyHeader != "" {
		fiberCfg.ProxyHeader = cfg.Server.ProxyHeader
	}
	if deps.LogWriter == nil {
		deps.LogWriter = os.Stdout
	}

	return &FiberRouter{
		app:      fiber.New(fiberCfg),
		cfg:      cfg,
		handlers: h,
		deps:     deps,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	slog.Info("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	authenticate := r.deps.AuthMiddleware.Authenticate()
	accessLog := middleware.AccessLog(r.deps.AccessLogger, r.cfg.Audit.LogRequestBody)
	can := r.deps.AuthMiddleware.RequirePermission

	// Auth endpoints with stricter rate limiting
	auth := api.Group("/auth", r.rateLimiter(r.cfg.Security.AuthRateLimit, nil))
	auth.Post("/signup", r.handlers.Auth.Signup)
	auth.Post("/login", r.handlers.Auth.Login)
	auth.Post("/refresh", r.handlers.Auth.Refresh)
	auth.Get("/remembered", r.handlers.Auth.RememberedLogin)
	auth.Get("/captcha", r.handlers.Auth.Captcha)
	auth.Post("/logout", authenticate, r.handlers.Auth.Logout)
	auth.Get("/session", authenticate, r.handlers.Auth.Session)
	auth.Put("/user", authenticate, accessLog, r.handlers.Auth.UpdateOwnProfile)

	// Server-side functions authenticate inside the handler
	api.All("/functions/create-user", r.handlers.Functions.CreateUser)

	finance := api.Group("/finance", authenticate, accessLog)
	finance.Get("/invoices/export", can("invoices", "export"), r.handlers.Finance.ExportInvoices)
	finance.Get("/invoices", r.handlers.Finance.ListInvoices)
	finance.Post("/invoices", can("invoices", "create"), r.handlers.Finance.CreateInvoice)
	finance.Get("/invoices/:id", r.handlers.Finance.GetInvoice)
	finance.Put("/invoices/:id/status", can("invoices", "update"), r.handlers.Finance.UpdateInvoiceStatus)
	finance.Get("/payments/export", can("payments", "export"), r.handlers.Finance.ExportPayments)
	finance.Get("/payments", r.handlers.Finance.ListPayments)
	finance.Post("/payments", can("payments", "create"), r.handlers.Finance.CreatePayment)
	finance.Put("/payments/:id/status", can("payments", "update"), r.handlers.Finance.UpdatePaymentStatus)
	finance.Get("/refunds", r.handlers.Finance.ListRefunds)
	finance.Post("/refunds", can("refunds", "create"), r.handlers.Finance.CreateRefund)
	finance.Put("/refunds/:id/process", can("refunds", "update"), r.handlers.Finance.ProcessRefund)
	finance.Get("/payment-methods", r.handlers.Finance.ListPaymentMethods)
	finance.Get("/summary", r.handlers.Finance.FinancialSummary)
	finance.Get("/cash-flow", r.handlers.Finance.CashFlow)
	finance.Get("/upcoming", r.handlers.Finance.UpcomingInvoices)

	customers := api.Group("/customers", authenticate, accessLog)
	customers.Get("/metrics", r.handlers.Customer.CustomerMetrics)
	customers.Get("/top", r.handlers.Customer.TopCustomers)
	customers.Get("", r.handlers.Customer.ListCustomers)
	customers.Get("/:id", r.handlers.Customer.GetCustomer)
	customers.Get("/:id/reliability", r.handlers.Customer.PaymentReliability)
	customers.Put("/:id/status", can("customers", "update"), r.handlers.Customer.UpdateCustomerStatus)

	accessLogs := api.Group("/access-logs", authenticate)
	accessLogs.Get("/export", can("access_logs", "export"), r.handlers.AccessLog.ExportAccessLogs)
	accessLogs.Get("", can("access_logs", "read"), r.handlers.AccessLog.ListAccessLogs)

	users := api.Group("/users", authenticate, accessLog)
	users.Get("/pending", can("users", "read"), r.handlers.UserManagement.ListPendingUsers)
	users.Get("", can("users", "read"), r.handlers.UserManagement.ListUsers)
	users.Post("/:id/approve", can("users", "approve"), r.handlers.UserManagement.ApproveUser)
	users.Post("/:id/reject", can("users", "approve"), r.handlers.UserManagement.RejectUser)
	users.Put("/:id/role", can("users", "update"), r.handlers.UserManagement.UpdateUserRole)
	users.Put("/:id/status", can("users", "update"), r.handlers.UserManagement.UpdateUserStatus)

	roles := api.Group("/roles", authenticate, accessLog)
	roles.Get("", can("roles", "read"), r.handlers.UserManagement.ListRoles)
	roles.Put("/:id/permissions", can("roles", "update"), r.handlers.UserManagement.UpdateRolePermissions)

	settings := api.Group("/settings", authenticate, accessLog)
	settings.Get("", r.handlers.Auth.GetSettings)
	settings.Put("", can("settings", "update"), r.handlers.Auth.SaveSettings)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	slog.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-site",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// Browsers refuse credentialed requests to a wildcard origin
	allowCredentials := r.cfg.Security.AllowCredentials && !slices.Contains(r.cfg.Security.AllowedOrigins, "*")
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, fiber.HeaderContentDisposition, "X-Export-Rows", "X-Export-Archive"},
		AllowCredentials: allowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Stream:     r.deps.LogWriter,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			slog.Error("panic recovered",
				"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
				"error", e,
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))
}

// rateLimiter limits requests per client IP over the configured window. A
// non-positive limit disables it.
func (r *FiberRouter) rateLimiter(limit int, skip func(c fiber.Ctx) bool) fiber.Handler {
	if limit <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: skip,
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	slog.Info("Starting server", "address", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck reports the service and its storage dependencies. Any failing
// dependency turns the answer into 503.
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	healthy := true
	database := "disabled"
	if r.deps.DB != nil {
		database = "ok"
		if err := pingDB(ctx, r.deps.DB); err != nil {
			slog.Warn("database health check failed", "error", err)
			database = "unavailable"
			healthy = false
		}
	}
	cache := "disabled"
	if r.deps.Cache != nil {
		cache = "ok"
		if err := r.deps.Cache.Ping(ctx).Err(); err != nil {
			slog.Warn("cache health check failed", "error", err)
			cache = "unavailable"
			healthy = false
		}
	}

	data := fiber.Map{
		"status":      "ok",
		"database":    database,
		"cache":       cache,
		"timestamp":   utils.UTCNow().Unix(),
		"version":     r.cfg.Deployment.Version,
		"environment": r.cfg.Deployment.Environment,
	}
	if !healthy {
		data["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    data,
			Error:   dto.ErrorDetail{Code: "SERVICE_UNAVAILABLE"},
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		}
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "status", code, "path", c.Path(), "method", c.Method(), "error", err)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
			},
		},
	})
}
