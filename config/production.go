// Package config loads the back-office configuration from .env files and the environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for the back-office service
type ProductionConfig struct {
	Database    DatabaseConfig    `json:"database"`
	Server      ServerConfig      `json:"server"`
	Security    SecurityConfig    `json:"security"`
	JWT         JWTConfig         `json:"jwt"`
	Logging     LoggingConfig     `json:"logging"`
	Metrics     MetricsConfig     `json:"metrics"`
	Cache       CacheConfig       `json:"cache"`
	Audit       AuditConfig       `json:"audit"`
	Storage     StorageConfig     `json:"storage"`
	SecureStore SecureStoreConfig `json:"secure_store"`
	Lockout     LockoutConfig     `json:"lockout"`
	Finance     FinanceConfig     `json:"finance"`
	Email       EmailConfig       `json:"email"`
	Deployment  DeploymentConfig  `json:"deployment"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"` // postgres, sqlite
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN renders the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableCompression bool          `json:"enable_compression"`
	ProxyHeader       string        `json:"proxy_header"`
}

type SecurityConfig struct {
	AllowedOrigins   []string      `json:"allowed_origins"`
	AllowedMethods   []string      `json:"allowed_methods"`
	AllowedHeaders   []string      `json:"allowed_headers"`
	AllowCredentials bool          `json:"allow_credentials"`
	CORSMaxAge       int           `json:"cors_max_age"`
	AuthRateLimit    int           `json:"auth_rate_limit"`
	GlobalRateLimit  int           `json:"global_rate_limit"`
	RateLimitWindow  time.Duration `json:"rate_limit_window"`
	BcryptCost       int           `json:"bcrypt_cost"`
	// FunctionSecret, when set, is accepted as a service bearer token by the
	// user-creation function endpoint in addition to admin JWTs.
	FunctionSecret string `json:"-"`
}

type JWTConfig struct {
	SecretKey       string        `json:"-"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	Issuer          string        `json:"issuer"`
	Audience        string        `json:"audience"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"` // redis, memory
	RedisURL string `json:"redis_url"`
}

// AuditConfig controls the access logger and its optional collaborators
type AuditConfig struct {
	Enabled         bool          `json:"enabled"`
	IPLookupEnabled bool          `json:"ip_lookup_enabled"`
	IPLookupURL     string        `json:"ip_lookup_url"`
	IPLookupTimeout time.Duration `json:"ip_lookup_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	NATSURL         string        `json:"nats_url"`
	NATSSubject     string        `json:"nats_subject"`
	LogRequestBody  bool          `json:"log_request_body"`
}

// StorageConfig configures report archiving to S3-compatible storage
type StorageConfig struct {
	S3Bucket    string `json:"s3_bucket"`
	S3Region    string `json:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3AccessKey string `json:"-"`
	S3SecretKey string `json:"-"`
	S3Prefix    string `json:"s3_prefix"`
}

// S3Enabled reports whether exported reports should be archived
func (s StorageConfig) S3Enabled() bool {
	return s.S3Bucket != ""
}

type SecureStoreConfig struct {
	KeyPrefix      string `json:"key_prefix"`
	ObfuscationKey string `json:"-"`
}

type LockoutConfig struct {
	MaxFailures      int           `json:"max_failures"`
	Window           time.Duration `json:"window"`
	CaptchaThreshold int           `json:"captcha_threshold"`
}

type FinanceConfig struct {
	UpcomingDueWindow time.Duration `json:"upcoming_due_window"`
	CashFlowMonths    int           `json:"cash_flow_months"`
	TopCustomers      int           `json:"top_customers"`
	ProgressTarget    float64       `json:"progress_target"`
	Currency          string        `json:"currency"`
}

type EmailConfig struct {
	Provider  string `json:"provider"` // log
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// LoadProductionConfig loads configuration from an optional .env file and the environment
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", "postgres"),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "backoffice"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			SQLitePath:      getEnvString("DB_SQLITE_PATH", "backoffice.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Client-Platform", "X-Client-Timezone", "X-Client-Screen"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			AuthRateLimit:    getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			BcryptCost:       getEnvInt("BCRYPT_COST", 12),
			FunctionSecret:   getEnvString("FUNCTION_SERVICE_SECRET", ""),
		},
		JWT: JWTConfig{
			SecretKey:       getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
			Issuer:          getEnvString("JWT_ISSUER", "backoffice"),
			Audience:        getEnvString("JWT_AUDIENCE", "backoffice-admin"),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Format:     getEnvString("LOG_FORMAT", "json"),
			FilePath:   getEnvString("LOG_FILE_PATH", ""),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("CACHE_ENABLED", true),
			Provider: getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL: getEnvString("CACHE_REDIS_URL", "redis://localhost:6379/0"),
		},
		Audit: AuditConfig{
			Enabled:         getEnvBool("AUDIT_ENABLED", true),
			IPLookupEnabled: getEnvBool("AUDIT_IP_LOOKUP_ENABLED", true),
			IPLookupURL:     getEnvString("AUDIT_IP_LOOKUP_URL", "https://api.ipify.org?format=json"),
			IPLookupTimeout: getEnvDuration("AUDIT_IP_LOOKUP_TIMEOUT", 3*time.Second),
			WriteTimeout:    getEnvDuration("AUDIT_WRITE_TIMEOUT", 10*time.Second),
			NATSURL:         getEnvString("AUDIT_NATS_URL", ""),
			NATSSubject:     getEnvString("AUDIT_NATS_SUBJECT", "backoffice.access_logs"),
			LogRequestBody:  getEnvBool("AUDIT_LOG_REQUEST_BODY", true),
		},
		Storage: StorageConfig{
			S3Bucket:    getEnvString("S3_BUCKET", ""),
			S3Region:    getEnvString("S3_REGION", "us-east-1"),
			S3Endpoint:  getEnvString("S3_ENDPOINT", ""),
			S3AccessKey: getEnvString("S3_ACCESS_KEY", ""),
			S3SecretKey: getEnvString("S3_SECRET_KEY", ""),
			S3Prefix:    getEnvString("S3_PREFIX", "reports/"),
		},
		SecureStore: SecureStoreConfig{
			KeyPrefix:      getEnvString("SECURE_STORE_PREFIX", "admin_app_"),
			ObfuscationKey: getEnvString("SECURE_STORE_OBFUSCATION_KEY", "admin-dashboard-key"),
		},
		Lockout: LockoutConfig{
			MaxFailures:      getEnvInt("LOCKOUT_MAX_FAILURES", 5),
			Window:           getEnvDuration("LOCKOUT_WINDOW", time.Hour),
			CaptchaThreshold: getEnvInt("LOCKOUT_CAPTCHA_THRESHOLD", 3),
		},
		Finance: FinanceConfig{
			UpcomingDueWindow: getEnvDuration("FINANCE_UPCOMING_DUE_WINDOW", 7*24*time.Hour),
			CashFlowMonths:    getEnvInt("FINANCE_CASH_FLOW_MONTHS", 6),
			TopCustomers:      getEnvInt("FINANCE_TOP_CUSTOMERS", 5),
			ProgressTarget:    getEnvFloat("FINANCE_PROGRESS_TARGET", 1000),
			Currency:          getEnvString("FINANCE_CURRENCY", "USD"),
		},
		Email: EmailConfig{
			Provider:  getEnvString("EMAIL_PROVIDER", "log"),
			FromEmail: getEnvString("EMAIL_FROM", "no-reply@backoffice.local"),
			FromName:  getEnvString("EMAIL_FROM_NAME", "Back Office"),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("APP_VERSION", "dev"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the configuration and reports every problem at once
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var problems []string

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			problems = append(problems, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			problems = append(problems, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			problems = append(problems, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			problems = append(problems, "DB_USER is required")
		}
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			problems = append(problems, "DB_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		problems = append(problems, "DB_DRIVER must be one of: postgres, sqlite")
	}

	if len(cfg.JWT.SecretKey) < 32 {
		problems = append(problems, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		problems = append(problems, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.RefreshTokenTTL <= 0 {
		problems = append(problems, "JWT_REFRESH_TOKEN_TTL must be positive")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 || cfg.Server.WriteTimeout <= 0 {
		problems = append(problems, "SERVER_READ_TIMEOUT and SERVER_WRITE_TIMEOUT must be positive")
	}

	if cfg.Security.BcryptCost < 4 || cfg.Security.BcryptCost > 14 {
		problems = append(problems, "BCRYPT_COST must be between 4 and 14")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}

	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		problems = append(problems, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
	}

	if cfg.Audit.IPLookupEnabled && cfg.Audit.IPLookupURL == "" {
		problems = append(problems, "AUDIT_IP_LOOKUP_URL is required when IP lookup is enabled")
	}

	if cfg.Lockout.MaxFailures <= 0 {
		problems = append(problems, "LOCKOUT_MAX_FAILURES must be positive")
	}
	if cfg.Lockout.Window <= 0 {
		problems = append(problems, "LOCKOUT_WINDOW must be positive")
	}

	if cfg.Finance.CashFlowMonths <= 0 {
		problems = append(problems, "FINANCE_CASH_FLOW_MONTHS must be positive")
	}

	if cfg.Storage.S3Bucket != "" && cfg.Storage.S3Region == "" {
		problems = append(problems, "S3_REGION is required when S3_BUCKET is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}

	return nil
}
