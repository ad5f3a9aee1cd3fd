package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const baseYAML = `
app:
  name: learnhub-payments
  http_addr: ":8080"
  gin_mode: release
  log_level: info
  log_file: ./logs/app.log
http:
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s
storage:
  driver: memory
idempotency:
  ttl: 2m
core:
  base_url: http://localhost:8000
  api_key: core-key
  timeout: 10s
sslcommerz:
  store_id: teststore
  store_pass: testpass
  payment_api: https://sandbox.sslcommerz.com/gwprocess/v4/api.php
  validation_api: https://sandbox.sslcommerz.com/validator/api/validationserverAPI.php
  currency: BDT
`

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadBase(t *testing.T) {
	dir := writeConfigs(t, map[string]string{"base.yaml": baseYAML})

	cfg, err := Load(dir, "dev")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTPAddr != ":8080" || cfg.App.GinMode != "release" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.HTTP.ReadTimeout != 10*time.Second || cfg.HTTP.IdleTimeout != 60*time.Second {
		t.Errorf("http timeouts = %+v", cfg.HTTP)
	}
	if cfg.Idempotency.TTL != 2*time.Minute {
		t.Errorf("idempotency ttl = %v", cfg.Idempotency.TTL)
	}
	if cfg.SSL.Currency != "BDT" {
		t.Errorf("currency = %q", cfg.SSL.Currency)
	}
}

func TestLoadEnvironmentOverlay(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"base.yaml": baseYAML,
		"prod.yaml": "app:\n  gin_mode: release\n  http_addr: \":9090\"\n",
	})

	cfg, err := Load(dir, "prod")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTPAddr != ":9090" {
		t.Errorf("overlay not applied, http_addr = %q", cfg.App.HTTPAddr)
	}
	// Values absent from the overlay keep their base values.
	if cfg.Core.BaseURL != "http://localhost:8000" {
		t.Errorf("core.base_url = %q", cfg.Core.BaseURL)
	}
}

func TestLoadEnvVarOverride(t *testing.T) {
	dir := writeConfigs(t, map[string]string{"base.yaml": baseYAML})

	t.Setenv("LEARNHUB_SSLCOMMERZ__STORE_ID", "livestore")
	t.Setenv("LEARNHUB_CORE__API_KEY", "rotated")

	cfg, err := Load(dir, "dev")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SSL.StoreID != "livestore" {
		t.Errorf("store_id = %q, env var should win", cfg.SSL.StoreID)
	}
	if cfg.Core.APIKey != "rotated" {
		t.Errorf("core.api_key = %q, env var should win", cfg.Core.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.App.HTTPAddr = "" },
			wantErr: "http_addr",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "postgres" },
			wantErr: "storage.driver",
		},
		{
			name:    "mysql without dsn",
			mutate:  func(c *Config) { c.Storage.Driver = "mysql" },
			wantErr: "storage.mysql.dsn",
		},
		{
			name: "mysql without redis",
			mutate: func(c *Config) {
				c.Storage.Driver = "mysql"
				c.Storage.MySQL.DSN = "user:pass@tcp(localhost:3306)/learnhub"
			},
			wantErr: "redis.addr",
		},
		{
			name:    "missing store credentials",
			mutate:  func(c *Config) { c.SSL.StorePass = "" },
			wantErr: "store_pass",
		},
	}

	dir := writeConfigs(t, map[string]string{"base.yaml": baseYAML})
	valid, err := Load(dir, "dev")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
