package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/donations?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "donations-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "STRIPE_SECRET_KEY", "sk_test")
	setEnv(t, "STRIPE_SIGNATURE_TOLERANCE_SECONDS", "120")
	setEnv(t, "STRIPE_HTTP_TIMEOUT_SECONDS", "7")
	setEnv(t, "EMAIL_ADMIN_ADDRESS", "admin@sledhockey.example")
	setEnv(t, "JOBS_SYNC_SCHEDULE", "*/5 * * * *")
	setEnv(t, "JOBS_SYNC_BATCH_SIZE", "50")
	unsetEnv(t, "EMAIL_FROM_ADDRESS")
	unsetEnv(t, "LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "donations-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" {
		t.Fatalf("unexpected http port: %s", cfg.HTTP.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("unexpected default log level: %s", cfg.Log.Level)
	}
	if cfg.Stripe.SecretKey != "sk_test" {
		t.Fatalf("unexpected stripe key: %s", cfg.Stripe.SecretKey)
	}
	if cfg.Stripe.SignatureToleranceSeconds != 120 {
		t.Fatalf("unexpected signature tolerance: %d", cfg.Stripe.SignatureToleranceSeconds)
	}
	if cfg.Stripe.HTTPTimeout != 7*time.Second {
		t.Fatalf("unexpected stripe timeout: %v", cfg.Stripe.HTTPTimeout)
	}
	if cfg.Email.AdminAddress != "admin@sledhockey.example" {
		t.Fatalf("unexpected admin address: %s", cfg.Email.AdminAddress)
	}
	if cfg.Email.FromAddress != "donations@sledhockey.example" {
		t.Fatalf("unexpected default from address: %s", cfg.Email.FromAddress)
	}
	if cfg.Jobs.SyncSchedule != "*/5 * * * *" {
		t.Fatalf("unexpected sync schedule: %s", cfg.Jobs.SyncSchedule)
	}
	if cfg.Jobs.SyncBatchSize != 50 {
		t.Fatalf("unexpected sync batch size: %d", cfg.Jobs.SyncBatchSize)
	}
}
