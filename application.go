package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/backoffice/app/handlers"
	"github.com/amirphl/backoffice/app/middleware"
	"github.com/amirphl/backoffice/app/router"
	"github.com/amirphl/backoffice/app/services"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/amirphl/backoffice/config"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application holds the wired server and everything that must be released on shutdown
type Application struct {
	router       *router.FiberRouter
	config       *config.ProductionConfig
	db           *gorm.DB
	cache        *redis.Client
	accessLogger *services.AccessLogger
	stopFuncs    []func()
}

func serve(ctx context.Context, cfg *config.ProductionConfig, logWriter io.Writer) error {
	slog.Info("Starting back-office API", "version", cfg.Deployment.Version, "environment", cfg.Deployment.Environment)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := initializeApplication(ctx, cfg, logWriter)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		app.close(closeCtx)
	}()

	app.router.SetupRoutes()

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		slog.Info("Server starting", "address", address)
		serverErr <- app.router.Start(address)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("Error during server shutdown", "error", err)
	}

	slog.Info("Server stopped")
	return nil
}

// close flushes pending access logs and releases connections
func (a *Application) close(ctx context.Context) {
	for _, fn := range a.stopFuncs {
		fn()
	}
	if a.accessLogger != nil {
		a.accessLogger.Shutdown(ctx)
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// initializeDatabase opens postgres or sqlite with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log.Default(), logger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == "sqlite" || cfg.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	slog.Info("Database connection established", "driver", cfg.Driver, "max_open_conns", cfg.MaxOpenConns)
	return db, nil
}

// initializeCache connects to Redis when the redis cache provider is enabled
func initializeCache(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Redis connection established", "addr", opt.Addr, "db", opt.DB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis until the returned cancel function is called
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil && !errors.Is(err, context.Canceled) {
					slog.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeAuditSinks builds the optional collaborators of the access logger.
// Disabled sinks are returned as nil interfaces.
func initializeAuditSinks(cfg *config.ProductionConfig) (services.IPResolver, *services.NATSAuditPublisher, error) {
	var resolver services.IPResolver
	if cfg.Audit.IPLookupEnabled {
		resolver = services.NewHTTPIPResolver(cfg.Audit.IPLookupURL, cfg.Audit.IPLookupTimeout)
	}

	if cfg.Audit.NATSURL == "" {
		return resolver, nil, nil
	}
	publisher, err := services.NewNATSAuditPublisher(services.DefaultNATSPublisherConfig(cfg.Audit.NATSURL, cfg.Audit.NATSSubject))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect audit publisher: %w", err)
	}
	slog.Info("Access logs are mirrored to NATS", "subject", cfg.Audit.NATSSubject)
	return resolver, publisher, nil
}

func initializeArchiver(cfg config.StorageConfig) (services.ReportArchiver, error) {
	if !cfg.S3Enabled() {
		return nil, nil
	}
	archiver, err := services.NewS3ReportArchiver(services.S3ArchiverConfig{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Prefix:    cfg.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report archiver: %w", err)
	}
	slog.Info("Exported reports are archived to S3", "bucket", cfg.S3Bucket)
	return archiver, nil
}

// initializeApplication wires repositories, services, flows and handlers
func initializeApplication(ctx context.Context, cfg *config.ProductionConfig, logWriter io.Writer) (*Application, error) {
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &Application{config: cfg, db: db}

	rc, err := initializeCache(ctx, cfg.Cache)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	app.cache = rc

	var backend services.StoreBackend
	var cache redis.UniversalClient
	if rc != nil {
		backend = services.NewRedisStoreBackend(rc)
		cache = rc
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(ctx, rc, 30*time.Second))
	} else {
		slog.Warn("Redis cache disabled; secure store is process-local")
		backend = services.NewMemoryStoreBackend()
	}
	store := services.NewSecureStore(backend, services.SecureStoreOptions{
		Prefix:         cfg.SecureStore.KeyPrefix,
		ObfuscationKey: cfg.SecureStore.ObfuscationKey,
		MaxFailures:    cfg.Lockout.MaxFailures,
		LockoutWindow:  cfg.Lockout.Window,
	})

	// Repositories
	identityRepo := repository.NewAuthIdentityRepository(db)
	profileRepo := repository.NewUserProfileRepository(db)
	roleRepo := repository.NewUserRoleRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentTransactionRepository(db)
	methodRepo := repository.NewPaymentMethodRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	accessLogRepo := repository.NewAccessLogRepository(db)

	// Services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
		store,
	)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	slog.Info("Token service initialized", "issuer", cfg.JWT.Issuer, "audience", cfg.JWT.Audience)

	permissions, err := services.NewPermissionService(ctx, roleRepo)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}

	captchaSvc := services.NewCaptchaServiceRotate(store, 2*time.Minute, 15, 300)
	notifier := services.NewNotificationService(services.NewLogEmailProvider(), cfg.Email.FromEmail, cfg.Email.FromName)

	resolver, publisher, err := initializeAuditSinks(cfg)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	var auditPublisher services.AuditPublisher
	if publisher != nil {
		auditPublisher = publisher
	}
	accessLogger := services.NewAccessLogger(accessLogRepo, resolver, auditPublisher, services.AccessLoggerOptions{
		Enabled:      cfg.Audit.Enabled,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})
	app.accessLogger = accessLogger

	archiver, err := initializeArchiver(cfg.Storage)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	// Flows
	authFlow := businessflow.NewAuthFlow(identityRepo, profileRepo, store, tokenService, captchaSvc, accessLogger, db, businessflow.AuthOptions{
		CaptchaThreshold: cfg.Lockout.CaptchaThreshold,
		BcryptCost:       cfg.Security.BcryptCost,
	})
	financeFlow := businessflow.NewFinanceFlow(
		invoiceRepo,
		paymentRepo,
		refundRepo,
		methodRepo,
		customerRepo,
		subscriptionRepo,
		repository.NewSequenceCounterRepository(db),
		accessLogger,
		archiver,
		db,
		businessflow.FinanceOptions{
			Currency:       cfg.Finance.Currency,
			CashFlowMonths: cfg.Finance.CashFlowMonths,
			UpcomingWindow: cfg.Finance.UpcomingDueWindow,
		},
	)
	customerFlow := businessflow.NewCustomerFlow(customerRepo, paymentRepo, accessLogger, businessflow.CustomerOptions{
		Currency:      cfg.Finance.Currency,
		TopN:          cfg.Finance.TopCustomers,
		RevenueTarget: cfg.Finance.ProgressTarget,
	})
	accessLogFlow := businessflow.NewAccessLogFlow(accessLogRepo, accessLogger, archiver)
	userManagementFlow := businessflow.NewUserManagementFlow(profileRepo, roleRepo, notifier, permissions, accessLogger, db)
	createUserFlow := businessflow.NewCreateUserFlow(identityRepo, profileRepo, roleRepo, accessLogger, cfg.Security.BcryptCost)

	secureCookie := cfg.Deployment.Environment == "production"
	h := router.Handlers{
		Auth:           handlers.NewAuthHandler(authFlow, secureCookie),
		Finance:        handlers.NewFinanceHandler(financeFlow),
		Customer:       handlers.NewCustomerHandler(customerFlow),
		AccessLog:      handlers.NewAccessLogHandler(accessLogFlow),
		UserManagement: handlers.NewUserManagementHandler(userManagementFlow),
		Functions:      handlers.NewFunctionsHandler(createUserFlow, tokenService, permissions, cfg.Security.FunctionSecret),
	}

	app.router = router.NewFiberRouter(cfg, h, router.Dependencies{
		AuthMiddleware: middleware.NewAuthMiddleware(tokenService, permissions),
		AccessLogger:   accessLogger,
		DB:             db,
		Cache:          cache,
		LogWriter:      logWriter,
	})

	return app, nil
}
