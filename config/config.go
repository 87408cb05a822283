package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ServiceName string
}

type HTTPConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type EmailConfig struct {
	ResendAPIKey string
	FromAddress  string
	AdminAddress string
	HTTPTimeout  time.Duration
}

type JobsConfig struct {
	SyncSchedule  string
	SyncBatchSize int32
}

type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	MySQL  MySQLConfig
	Log    LogConfig
	Stripe StripeConfig
	Email  EmailConfig
	Jobs   JobsConfig
}

// Load reads configuration from the environment, with .env as a fallback
// for local development. Only the database DSN is mandatory; Stripe and
// email credentials may be absent, which degrades the service to a
// not-configured mode rather than preventing startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}

	cfg := &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "donations-service"),
		},
		HTTP: HTTPConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Stripe: StripeConfig{
			SecretKey:                 os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:             os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10),
		},
		Email: EmailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "donations@sledhockey.example"),
			AdminAddress: os.Getenv("EMAIL_ADMIN_ADDRESS"),
			HTTPTimeout:  getSecondsEnv("EMAIL_HTTP_TIMEOUT_SECONDS", 10),
		},
		Jobs: JobsConfig{
			SyncSchedule:  getEnv("JOBS_SYNC_SCHEDULE", "*/10 * * * *"),
			SyncBatchSize: int32(getIntEnv("JOBS_SYNC_BATCH_SIZE", 100)),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getMinutesEnv(key string, fallbackMinutes int) time.Duration {
	return time.Duration(getIntEnv(key, fallbackMinutes)) * time.Minute
}

func getSecondsEnv(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getIntEnv(key, fallbackSeconds)) * time.Second
}
