// Package config loads runtime settings from the environment, reading a
// .env file in the working directory first when one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Config struct {
	Port      string
	DBPath    string
	BaseURL   string
	LogLevel  string
	LogFormat string

	FreeMemoryLimit  int
	PracticeDeckSize int
	UpcomingLimit    int
	ReminderDays     int
	ReminderHour     int
	Timezone         string
	Location         *time.Location

	Stripe StripeConfig

	PostmarkToken string
	FromEmail     string

	VAPIDPublicKey  string
	VAPIDPrivateKey string

	S3                  S3Config
	BackupPassphrase    string
	BackupHour          int
	BackupRetentionDays int

	OpenAIKey     string
	OpenAIModel   string
	OpenAITimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port := getEnv("MEMORIES_PORT", "8080")
	cfg := &Config{
		Port:      port,
		DBPath:    getEnv("MEMORIES_DB_PATH", "memories.db"),
		BaseURL:   getEnv("MEMORIES_BASE_URL", "http://localhost:"+port),
		LogLevel:  getEnv("MEMORIES_LOG_LEVEL", "info"),
		LogFormat: getEnv("MEMORIES_LOG_FORMAT", "text"),

		FreeMemoryLimit:  getEnvInt("MEMORIES_FREE_MEMORY_LIMIT", 3),
		PracticeDeckSize: getEnvInt("MEMORIES_PRACTICE_DECK_SIZE", 10),
		UpcomingLimit:    getEnvInt("MEMORIES_UPCOMING_LIMIT", 5),
		ReminderDays:     getEnvInt("MEMORIES_REMINDER_DAYS", 7),
		ReminderHour:     getEnvInt("MEMORIES_REMINDER_HOUR", 9),
		Timezone:         getEnv("MEMORIES_TIMEZONE", "UTC"),

		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceID:       os.Getenv("STRIPE_PRICE_ID"),
		},

		PostmarkToken: os.Getenv("POSTMARK_TOKEN"),
		FromEmail:     getEnv("MEMORIES_FROM_EMAIL", "noreply@essentialmemories.app"),

		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),

		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		BackupPassphrase:    os.Getenv("BACKUP_PASSPHRASE"),
		BackupHour:          getEnvInt("MEMORIES_BACKUP_HOUR", 3),
		BackupRetentionDays: getEnvInt("MEMORIES_BACKUP_RETENTION_DAYS", 30),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("MEMORIES_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout: getEnvDuration("MEMORIES_OPENAI_TIMEOUT", 30*time.Second),
	}

	return cfg, cfg.Validate()
}

// Validate checks ranges and resolves Timezone into Location.
func (c *Config) Validate() error {
	if c.FreeMemoryLimit <= 0 {
		return fmt.Errorf("MEMORIES_FREE_MEMORY_LIMIT must be positive, got %d", c.FreeMemoryLimit)
	}
	if c.PracticeDeckSize <= 0 {
		return fmt.Errorf("MEMORIES_PRACTICE_DECK_SIZE must be positive, got %d", c.PracticeDeckSize)
	}
	if c.UpcomingLimit <= 0 {
		return fmt.Errorf("MEMORIES_UPCOMING_LIMIT must be positive, got %d", c.UpcomingLimit)
	}
	if c.ReminderDays < 0 || c.ReminderDays > 366 {
		return fmt.Errorf("MEMORIES_REMINDER_DAYS must be 0-366, got %d", c.ReminderDays)
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return fmt.Errorf("MEMORIES_REMINDER_HOUR must be 0-23, got %d", c.ReminderHour)
	}
	if c.BackupHour < 0 || c.BackupHour > 23 {
		return fmt.Errorf("MEMORIES_BACKUP_HOUR must be 0-23, got %d", c.BackupHour)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("MEMORIES_TIMEZONE: %w", err)
	}
	c.Location = loc
	return nil
}

// BillingEnabled reports whether Stripe checkout can be offered.
func (c *Config) BillingEnabled() bool {
	return c.Stripe.SecretKey != "" && c.Stripe.PriceID != ""
}

// PushEnabled reports whether VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// BackupEnabled reports whether encrypted S3 backups can run.
func (c *Config) BackupEnabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.BackupPassphrase != ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
