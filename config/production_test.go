package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func TestLoadProductionConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Lockout.MaxFailures)
	assert.Equal(t, time.Hour, cfg.Lockout.Window)
	assert.Equal(t, 3, cfg.Lockout.CaptchaThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Finance.UpcomingDueWindow)
	assert.Equal(t, 6, cfg.Finance.CashFlowMonths)
	assert.Equal(t, 5, cfg.Finance.TopCustomers)
	assert.InDelta(t, 1000, cfg.Finance.ProgressTarget, 0.001)
	assert.Equal(t, "admin_app_", cfg.SecureStore.KeyPrefix)
	assert.False(t, cfg.Storage.S3Enabled())
}

func TestLoadProductionConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/backoffice.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://admin.example.com, https://ops.example.com ,")
	t.Setenv("LOCKOUT_WINDOW", "30m")
	t.Setenv("AUDIT_ENABLED", "false")
	t.Setenv("S3_BUCKET", "reports")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/backoffice.db", cfg.Database.SQLitePath)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://admin.example.com", "https://ops.example.com"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Lockout.Window)
	assert.False(t, cfg.Audit.Enabled)
	assert.True(t, cfg.Storage.S3Enabled())
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestValidateProductionConfig_CollectsEveryProblem(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "short")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("BCRYPT_COST", "20")
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := LoadProductionConfig()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DB_DRIVER must be one of")
	assert.Contains(t, msg, "JWT_SECRET_KEY must be at least 32 characters long")
	assert.Contains(t, msg, "BCRYPT_COST must be between 4 and 14")
	assert.Contains(t, msg, "LOG_LEVEL must be one of")
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "pw", Name: "backoffice", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=backoffice sslmode=disable", d.DSN())
}
