// LearnHub Payments Service
//
// This is the main entry point for the enrollment payment service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/learnhub/learnhub-payments/config"
	"github.com/learnhub/learnhub-payments/internal/api"
	"github.com/learnhub/learnhub-payments/internal/domain"
	"github.com/learnhub/learnhub-payments/internal/enrollment"
	"github.com/learnhub/learnhub-payments/internal/logging"
	"github.com/learnhub/learnhub-payments/internal/platform/lmscore"
	"github.com/learnhub/learnhub-payments/internal/platform/sslcommerz"
	"github.com/learnhub/learnhub-payments/internal/storage/memory"
	mysqlstore "github.com/learnhub/learnhub-payments/internal/storage/mysql"
	redisstore "github.com/learnhub/learnhub-payments/internal/storage/redis"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	cfg, err := config.Load("./configs", env)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := logging.Init(cfg.App.Name, cfg.App.LogFile, logLevel(cfg.App.LogLevel))
	logger.Info("starting learnhub-payments",
		"addr", cfg.App.HTTPAddr, "storage", cfg.Storage.Driver, "core_url", cfg.Core.BaseURL)

	// Wire up dependencies (manual dependency injection)
	//
	// Infrastructure layer
	ledger, payments, idem, cleanup, err := buildStorage(cfg)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	coreClient := lmscore.NewClient(cfg.Core.BaseURL, cfg.Core.APIKey, cfg.Core.Timeout)
	gateway := sslcommerz.NewAdapter(sslcommerz.Config{
		StoreID:       cfg.SSL.StoreID,
		StorePass:     cfg.SSL.StorePass,
		PaymentAPI:    cfg.SSL.PaymentAPI,
		ValidationAPI: cfg.SSL.ValidationAPI,
		Currency:      cfg.SSL.Currency,
		Timeout:       cfg.SSL.Timeout,
		SuccessURL:    cfg.SSL.SuccessBackendURL,
		FailURL:       cfg.SSL.FailBackendURL,
		CancelURL:     cfg.SSL.CancelBackendURL,
		City:          cfg.SSL.City,
		Country:       cfg.SSL.Country,
	})

	// Service layer
	enrollSvc := enrollment.NewService(
		coreClient, coreClient, ledger, ledger, payments, gateway, idem,
		enrollment.PayerDefaults{
			Address: cfg.SSL.DefaultAddress,
			Phone:   cfg.SSL.DefaultPhone,
		},
	)
	reconciler := enrollment.NewReconciler(payments, ledger, coreClient, gateway)

	// API layer
	handler := api.NewHandler(enrollSvc, reconciler, api.FrontendURLs{
		Success: cfg.SSL.SuccessFrontendURL,
		Fail:    cfg.SSL.FailFrontendURL,
		Cancel:  cfg.SSL.CancelFrontendURL,
	})
	router := api.SetupRouter(handler, cfg.App.GinMode, cfg.Security.ServiceAPIKey)

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// storageSet is what buildStorage hands back regardless of driver.
type storageSet interface {
	domain.LedgerWriter
	domain.OrderRepository
}

func buildStorage(cfg config.Config) (storageSet, domain.PaymentRepository, domain.IdempotencyStore, func(), error) {
	if cfg.Storage.Driver == "memory" {
		ledger := memory.NewLedger()
		return ledger, ledger.Payments(), memory.NewIdempotencyStore(cfg.Idempotency.TTL), func() {}, nil
	}

	db, err := sql.Open("mysql", cfg.Storage.MySQL.DSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.Storage.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Storage.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Storage.MySQL.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, fmt.Errorf("ping mysql: %w", err)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	ledger := mysqlstore.NewLedger(db)
	idem := redisstore.NewIdempotencyStore(rdb, cfg.Idempotency.TTL)
	cleanup := func() {
		_ = db.Close()
		_ = rdb.Close()
	}
	return ledger, ledger.Payments(), idem, cleanup, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
