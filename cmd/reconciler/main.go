package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/storefront/internal/config"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/events"
	ordersadapters "github.com/dejobratic/storefront/internal/orders/adapters"
	orderspostgres "github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	ordersapp "github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/payment"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/joho/godotenv"
)

var errSandboxGateway = errors.New("the reconciler needs PAYMENT_GATEWAY=http; sandbox intents do not outlive the api process")

func main() {
	_ = godotenv.Load()

	olderThan := flag.Duration("older-than", 0, "minimum age of a pending order (default PAYMENT_RECONCILE_AFTER)")
	limit := flag.Int("limit", 100, "maximum orders to inspect in one sweep")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(telemetry.LoggerOptions{
		Level:  telemetry.ParseLevel(cfg.Telemetry.LogLevel),
		Pretty: cfg.IsLocal(),
	})
	slog.SetDefault(logger)

	if *olderThan <= 0 {
		*olderThan = cfg.Payment.ReconcileAfter
	}

	if err := run(cfg, logger, *olderThan, *limit); err != nil {
		logger.Error("reconciliation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, olderThan time.Duration, limit int) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("the reconciler needs STORE_DRIVER=postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Payment.Gateway != "http" {
		return errSandboxGateway
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name + "-reconciler",
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	// Flushes the sweep's counters before the process exits.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	m, err := metrics.NewMetrics(tel.Meter(cfg.Service.Name))
	if err != nil {
		return fmt.Errorf("create order metrics: %w", err)
	}

	signer, err := payment.NewSigner(cfg.Payment.WebhookSecret)
	if err != nil {
		return fmt.Errorf("create payment signer: %w", err)
	}

	gateway := payment.NewClient(payment.ClientConfig{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	})

	service := ordersapp.NewService(ordersapp.Dependencies{
		Repo:           orderspostgres.NewRepository(pool),
		Gateway:        ordersadapters.NewObservableGateway(gateway, m),
		Verifier:       signer,
		Events:         events.NewLoggingBus(logger),
		Logger:         logger,
		Metrics:        m,
		Currency:       cfg.Payment.Currency,
		GatewayTimeout: cfg.Payment.Timeout,
	})

	logger.Info("reconciling pending orders", "older_than", olderThan.String(), "limit", limit)

	summary, err := service.Reconcile(ctx, olderThan, limit)
	if err != nil {
		return err
	}

	logger.Info("reconciliation finished",
		"scanned", summary.Scanned,
		"attached", summary.Attached,
		"voided", summary.Voided,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	if summary.Failed > 0 {
		return fmt.Errorf("%d orders could not be reconciled", summary.Failed)
	}
	return nil
}
