package config

import (
	"strings"
	"testing"
	"time"
)

const testKey = "0123456789abcdef0123456789abcdef"

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$12$abcdefghijklmnopqrstuv")
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Stream.Interval != 2*time.Second {
		t.Errorf("Stream.Interval = %v, want 2s", cfg.Stream.Interval)
	}
	if cfg.Stream.KeepAlive != 15*time.Second {
		t.Errorf("Stream.KeepAlive = %v, want 15s", cfg.Stream.KeepAlive)
	}
	if cfg.Stream.RetryMillis != 5000 {
		t.Errorf("Stream.RetryMillis = %d, want 5000", cfg.Stream.RetryMillis)
	}
	if cfg.Exchange.PairsCacheTTL != 10*time.Minute {
		t.Errorf("Exchange.PairsCacheTTL = %v, want 10m", cfg.Exchange.PairsCacheTTL)
	}
	if cfg.Webhook.LogRetention != 720*time.Hour {
		t.Errorf("Webhook.LogRetention = %v, want 720h", cfg.Webhook.LogRetention)
	}
	if cfg.Security.UserHeader != "X-User-ID" {
		t.Errorf("Security.UserHeader = %q", cfg.Security.UserHeader)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("WEBHOOK_RATE", "2.5")
	t.Setenv("STREAM_INTERVAL", "500ms")
	t.Setenv("DB_PORT", "not-a-number") // невалидное значение -> default

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Webhook.Rate != 2.5 {
		t.Errorf("Webhook.Rate = %v, want 2.5", cfg.Webhook.Rate)
	}
	if cfg.Stream.Interval != 500*time.Millisecond {
		t.Errorf("Stream.Interval = %v", cfg.Stream.Interval)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestLoad_SecurityValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing encryption key",
			env:     map[string]string{"ENCRYPTION_KEY": ""},
			wantErr: "ENCRYPTION_KEY is required",
		},
		{
			name:    "short encryption key",
			env:     map[string]string{"ENCRYPTION_KEY": "short"},
			wantErr: "exactly 32 bytes",
		},
		{
			name:    "missing admin in production",
			env:     map[string]string{"ADMIN_PASSWORD_HASH": ""},
			wantErr: "ADMIN_USERNAME and ADMIN_PASSWORD_HASH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_DevelopmentWithoutAdmin(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment should be true")
	}
}

func TestLoad_RangeValidation(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr string
	}{
		{"SERVER_PORT", "70000", "SERVER_PORT"},
		{"STREAM_SNAPSHOT_LIMIT", "500", "STREAM_SNAPSHOT_LIMIT"},
		{"WEBHOOK_BURST", "0.5", "WEBHOOK_BURST"},
		{"WEBHOOK_RATE", "-1", "WEBHOOK_RATE"},
		{"STREAM_INTERVAL", "-1s", "STREAM_INTERVAL"},
		{"LOG_RETENTION", "-1h", "LOG_RETENTION"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setValidEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDSNWithoutPassword(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "secret", Name: "n", SSLMode: "disable"}

	if strings.Contains(d.DSNWithoutPassword(), "secret") {
		t.Error("DSNWithoutPassword leaks password")
	}
	if !strings.Contains(d.DSN(), "password=secret") {
		t.Error("DSN must include password")
	}
}
