// Package config handles loading and managing application configuration.
// Configuration is layered: base.yaml, then an optional per-environment
// overlay, then LEARNHUB_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		GinMode  string `koanf:"gin_mode"` // "debug", "release", or "test"
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	Storage struct {
		// Driver selects the ledger backend: "mysql" or "memory".
		Driver string `koanf:"driver"`

		MySQL struct {
			DSN             string        `koanf:"dsn"`
			MaxOpenConns    int           `koanf:"max_open_conns"`
			MaxIdleConns    int           `koanf:"max_idle_conns"`
			ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		} `koanf:"mysql"`
	} `koanf:"storage"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	// Core is the LMS core API that owns courses and users.
	Core struct {
		BaseURL string        `koanf:"base_url"`
		APIKey  string        `koanf:"api_key"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"core"`

	// SSL is the SSLCommerz gateway configuration.
	SSL struct {
		StoreID       string        `koanf:"store_id"`
		StorePass     string        `koanf:"store_pass"`
		PaymentAPI    string        `koanf:"payment_api"`
		ValidationAPI string        `koanf:"validation_api"`
		Timeout       time.Duration `koanf:"timeout"`
		Currency      string        `koanf:"currency"`

		// Backend URLs the gateway redirects the browser back to.
		SuccessBackendURL string `koanf:"success_backend_url"`
		FailBackendURL    string `koanf:"fail_backend_url"`
		CancelBackendURL  string `koanf:"cancel_backend_url"`

		// Frontend URLs the service redirects the browser onward to.
		SuccessFrontendURL string `koanf:"success_frontend_url"`
		FailFrontendURL    string `koanf:"fail_frontend_url"`
		CancelFrontendURL  string `koanf:"cancel_frontend_url"`

		// Payer fallbacks used when a student record is missing a field.
		DefaultAddress string `koanf:"default_address"`
		DefaultPhone   string `koanf:"default_phone"`
		City           string `koanf:"city"`
		Country        string `koanf:"country"`
	} `koanf:"sslcommerz"`

	Security struct {
		// ServiceAPIKey is the bearer token expected from the auth frontend.
		ServiceAPIKey string `koanf:"service_api_key"`
	} `koanf:"security"`
}

// Load reads configuration from pathDir: base.yaml, then <envName>.yaml if
// present, then LEARNHUB_ environment variables (nested keys with __, e.g.
// LEARNHUB_STORAGE__MYSQL__DSN).
func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// Per-environment overlay is optional for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	if err := k.Load(env.Provider("LEARNHUB_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "LEARNHUB_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Storage.Driver {
	case "mysql":
		if c.Storage.MySQL.DSN == "" {
			return fmt.Errorf("storage.mysql.dsn required")
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr required")
		}
	case "memory":
		// No backing services needed.
	default:
		return fmt.Errorf("storage.driver must be mysql or memory")
	}
	if c.Core.BaseURL == "" {
		return fmt.Errorf("core.base_url required")
	}
	if c.SSL.StoreID == "" || c.SSL.StorePass == "" {
		return fmt.Errorf("sslcommerz.store_id and store_pass required")
	}
	if c.SSL.PaymentAPI == "" || c.SSL.ValidationAPI == "" {
		return fmt.Errorf("sslcommerz.payment_api and validation_api required")
	}
	return nil
}
