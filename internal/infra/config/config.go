package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver      string
	DatabaseURL         string
	BusinessTimezone    string
	CronSpecExpiryCheck string // Daily run of the expiry notification batch
	NotifyWorkers       int
	TelegramToken       string // Optional, the admin bot is disabled without it
	AdminTelegramID     int64
	ResendAPIKey        string // Optional, mails are only logged without it
	MailFrom            string
	DateDisplayLayout   string
	LogLevel            string
	Environment         string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseDriver = strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverPostgres
	}
	if cfg.DatabaseDriver != DriverPostgres && cfg.DatabaseDriver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.BusinessTimezone = os.Getenv("BUSINESS_TIMEZONE")
	if cfg.BusinessTimezone == "" {
		cfg.BusinessTimezone = "Europe/Paris"
	}

	cfg.CronSpecExpiryCheck = os.Getenv("CRON_SPEC_EXPIRY_CHECK")
	if cfg.CronSpecExpiryCheck == "" {
		cfg.CronSpecExpiryCheck = "0 9 * * *" // Default: 9:00 AM daily, business timezone
	}

	cfg.NotifyWorkers = 4
	if v := os.Getenv("NOTIFY_WORKERS"); v != "" {
		cfg.NotifyWorkers, err = strconv.Atoi(v)
		if err != nil || cfg.NotifyWorkers < 1 {
			return nil, fmt.Errorf("invalid NOTIFY_WORKERS %q", v)
		}
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.MailFrom = os.Getenv("MAIL_FROM")
	if cfg.ResendAPIKey != "" && cfg.MailFrom == "" {
		return nil, fmt.Errorf("MAIL_FROM is required when RESEND_API_KEY is set")
	}

	cfg.DateDisplayLayout = os.Getenv("DATE_DISPLAY_LAYOUT")
	if cfg.DateDisplayLayout == "" {
		cfg.DateDisplayLayout = "2006-01-02"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}
