package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LEDGER_DIR", "AI_API_KEY", "HF_TOKEN", "GEMINI_API_KEY", "JWT_SECRET", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
server:
  port: 9090
log:
  level: "debug"
  format: "json"
ledger:
  dir: "/var/lib/orders"
  orders_file: "orders.csv"
  products_file: "/data/products.csv"
  customers_file: "customers.csv"
ai:
  provider: "openai"
  api_key: "hf-test"
  timeout_seconds: 30
minio:
  enabled: true
  endpoint: "localhost:9000"
  access_key: "minioadmin"
  secret_key: "minioadmin"
  bucket: "ledgers"
  expire_days: 14
auth:
  jwt_secret: "test-secret"
  token_expire_hours: 48
users:
  - username: "seller"
    password: "secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Unexpected log config %+v", cfg.Log)
	}
	if got := cfg.Ledger.OrdersPath(); got != filepath.Join("/var/lib/orders", "orders.csv") {
		t.Errorf("Unexpected orders path %s", got)
	}
	if got := cfg.Ledger.ProductsPath(); got != "/data/products.csv" {
		t.Errorf("Expected absolute products path to be kept, got %s", got)
	}
	if cfg.AI.APIURL != "https://router.huggingface.co/hf-inference/v1" {
		t.Errorf("Expected default openai api_url, got %s", cfg.AI.APIURL)
	}
	if cfg.AI.TimeoutSeconds != 30 {
		t.Errorf("Expected timeout 30, got %d", cfg.AI.TimeoutSeconds)
	}
	if cfg.Minio.ExpireDays != 14 {
		t.Errorf("Expected expire_days 14, got %d", cfg.Minio.ExpireDays)
	}
	if cfg.Auth.TokenExpireHours != 48 {
		t.Errorf("Expected token_expire_hours 48, got %d", cfg.Auth.TokenExpireHours)
	}
	if len(cfg.Users) != 1 || cfg.Users[0].Username != "seller" {
		t.Errorf("Unexpected users %+v", cfg.Users)
	}
	if GlobalConfig != cfg {
		t.Error("Expected GlobalConfig to be set")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Ledger.OrdersFile != "kufar_orders.csv" {
		t.Errorf("Expected default orders file, got %s", cfg.Ledger.OrdersFile)
	}
	if cfg.AI.Provider != "none" {
		t.Errorf("Expected default provider none, got %s", cfg.AI.Provider)
	}
	if cfg.AI.MaxTokens != 1000 {
		t.Errorf("Expected default max_tokens 1000, got %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.SamplingTemperature() != DefaultTemperature {
		t.Errorf("Expected default temperature, got %v", cfg.AI.SamplingTemperature())
	}
	if cfg.Auth.TokenExpireHours != 24 {
		t.Errorf("Expected default token_expire_hours 24, got %d", cfg.Auth.TokenExpireHours)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Unexpected default log config %+v", cfg.Log)
	}
}

func TestLoadKeepsZeroTemperature(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "ai:\n  provider: openai\n  temperature: 0\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0 {
		t.Errorf("Expected explicit temperature 0 to be kept, got %v", cfg.AI.Temperature)
	}
	if cfg.AI.SamplingTemperature() != 0 {
		t.Errorf("Expected sampling temperature 0, got %v", cfg.AI.SamplingTemperature())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got %v", err)
	}
	if cfg.Ledger.Dir != "." {
		t.Errorf("Expected default ledger dir, got %s", cfg.Ledger.Dir)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_DIR", "/tmp/ledgers")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(writeConfig(t, "ai:\n  provider: gemini\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Ledger.Dir != "/tmp/ledgers" {
		t.Errorf("Expected ledger dir from env, got %s", cfg.Ledger.Dir)
	}
	if cfg.AI.APIKey != "gemini-key" {
		t.Errorf("Expected gemini key from env, got %s", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "gemini-2.0-flash" {
		t.Errorf("Expected default gemini model, got %s", cfg.AI.Model)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected jwt secret from env, got %s", cfg.Auth.JWTSecret)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "invalid: yaml: content:"))
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "ai:\n  provider: claude\n"},
		{"bad log level", "log:\n  level: verbose\n"},
		{"temperature out of range", "ai:\n  temperature: 3\n"},
		{"minio without endpoint", "minio:\n  enabled: true\n  bucket: b\n"},
		{"user without password", "users:\n  - username: seller\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestFindUser(t *testing.T) {
	cfg := &Config{
		Users: []User{
			{Username: "user1", Password: "pass1"},
			{Username: "user2", Password: "pass2"},
		},
	}

	user := cfg.FindUser("user1")
	if user == nil {
		t.Fatal("Expected to find user1")
	}
	if user.Password != "pass1" {
		t.Errorf("Expected password pass1, got %s", user.Password)
	}

	if cfg.FindUser("nonexistent") != nil {
		t.Error("Expected nil for non-existent user")
	}
}
