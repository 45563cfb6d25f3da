package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/subscriptions")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("BUSINESS_TIMEZONE", "")
	t.Setenv("CRON_SPEC_EXPIRY_CHECK", "")
	t.Setenv("NOTIFY_WORKERS", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("ADMIN_TELEGRAM_ID", "")
	t.Setenv("RESEND_API_KEY", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, "Europe/Paris", cfg.BusinessTimezone)
	assert.Equal(t, "0 9 * * *", cfg.CronSpecExpiryCheck)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")

	t.Setenv("DATABASE_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("NOTIFY_WORKERS", "0")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("NOTIFY_WORKERS", "2")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_ID", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("ADMIN_TELEGRAM_ID", "42")
	t.Setenv("RESEND_API_KEY", "re_123")
	t.Setenv("MAIL_FROM", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("MAIL_FROM", "billing@example.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, 2, cfg.NotifyWorkers)
	assert.Equal(t, int64(42), cfg.AdminTelegramID)
}
