package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	HTTPAddr    string
	Environment string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only when a reverse proxy sets those headers.
	TrustProxy bool

	// Database configuration
	DBPath          string
	DBEncryptionKey string

	// Application encryption (diary content)
	AppEncryptionKey string

	// Sessions
	SessionSecret       string
	SessionCookieName   string
	SessionCookieSecure bool
	SessionIdleTimeout  time.Duration

	// Diary access
	DiaryUnlockTTL     time.Duration
	DiaryOTPTTL        time.Duration
	PinMaxAttempts     int
	PinLockoutDuration time.Duration
	OTPRequestsPerHour int

	// Login lockout
	LoginMaxAttempts     int
	LoginLockoutDuration time.Duration

	// Rate limiting
	RateLimitRPS   int
	RateLimitBurst int

	// Uploads
	UploadDir      string
	UploadMaxBytes int64

	// Outgoing mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Audit configuration
	AuditLogPath   string
	AuditAsyncMode bool

	// Backup configuration
	BackupDir           string
	BackupEncryptionKey string
	BackupInterval      time.Duration
	BackupRetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (not required in production)
	godotenv.Load()

	config := &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		Environment:          getEnv("APP_ENV", "development"),
		TrustProxy:           getEnvAsBool("TRUST_PROXY", false),
		DBPath:               getEnv("DB_PATH", "./data/daybook.db"),
		DBEncryptionKey:      getEnv("DB_ENCRYPTION_KEY", ""),
		AppEncryptionKey:     getEnv("APP_ENCRYPTION_KEY", ""),
		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionCookieName:    getEnv("SESSION_COOKIE_NAME", "daybook_session"),
		SessionCookieSecure:  getEnvAsBool("SESSION_COOKIE_SECURE", false),
		SessionIdleTimeout:   getEnvAsDuration("SESSION_IDLE_MINUTES", 120, time.Minute),
		DiaryUnlockTTL:       getEnvAsDuration("DIARY_UNLOCK_MINUTES", 60, time.Minute),
		DiaryOTPTTL:          getEnvAsDuration("DIARY_OTP_MINUTES", 10, time.Minute),
		PinMaxAttempts:       getEnvAsInt("PIN_MAX_ATTEMPTS", 5),
		PinLockoutDuration:   getEnvAsDuration("PIN_LOCKOUT_MINUTES", 15, time.Minute),
		OTPRequestsPerHour:   getEnvAsInt("OTP_REQUESTS_PER_HOUR", 5),
		LoginMaxAttempts:     getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockoutDuration: getEnvAsDuration("LOGIN_LOCKOUT_MINUTES", 30, time.Minute),
		RateLimitRPS:         getEnvAsInt("RATE_LIMIT_REQUESTS_PER_SECOND", 10),
		RateLimitBurst:       getEnvAsInt("RATE_LIMIT_BURST", 20),
		UploadDir:            getEnv("UPLOAD_DIR", "./uploads"),
		UploadMaxBytes:       int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5<<20)),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", "no-reply@daybook.local"),
		AuditLogPath:         getEnv("AUDIT_LOG_PATH", "./logs/audit.log"),
		AuditAsyncMode:       getEnvAsBool("AUDIT_ASYNC_MODE", true),
		BackupDir:            getEnv("BACKUP_DIR", "./backups"),
		BackupEncryptionKey:  getEnv("BACKUP_ENCRYPTION_KEY", ""),
		BackupInterval:       getEnvAsDuration("BACKUP_INTERVAL_HOURS", 24, time.Hour),
		BackupRetentionDays:  getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	secrets := []struct {
		key   string
		value string
	}{
		{"DB_ENCRYPTION_KEY", c.DBEncryptionKey},
		{"APP_ENCRYPTION_KEY", c.AppEncryptionKey},
		{"SESSION_SECRET", c.SessionSecret},
	}
	for _, s := range secrets {
		if s.value == "" {
			return fmt.Errorf("%s is required", s.key)
		}
		if len(s.value) < 32 {
			return fmt.Errorf("%s must be at least 32 characters", s.key)
		}
	}

	if c.BackupEncryptionKey == "" {
		return fmt.Errorf("BACKUP_ENCRYPTION_KEY is required")
	}

	if c.PinMaxAttempts < 1 || c.LoginMaxAttempts < 1 {
		return fmt.Errorf("PIN_MAX_ATTEMPTS and LOGIN_MAX_ATTEMPTS must be positive")
	}

	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}

	if c.IsProduction() && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required in production")
	}

	return nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether APP_ENV is "development".
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration reads an integer count of unit.
func getEnvAsDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * unit
}
