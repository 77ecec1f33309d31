package main

import (
	"context"
	"fmt"
	"log/slog"

	cartmemory "github.com/dejobratic/storefront/internal/cart/adapters/memory"
	cartpostgres "github.com/dejobratic/storefront/internal/cart/adapters/postgres"
	cartports "github.com/dejobratic/storefront/internal/cart/ports"
	catalogmemory "github.com/dejobratic/storefront/internal/catalog/adapters/memory"
	catalogpostgres "github.com/dejobratic/storefront/internal/catalog/adapters/postgres"
	catalogports "github.com/dejobratic/storefront/internal/catalog/ports"
	"github.com/dejobratic/storefront/internal/config"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/events"
	"github.com/dejobratic/storefront/internal/httpserver"
	idemmemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	idempostgres "github.com/dejobratic/storefront/internal/idempotency/postgres"
	identitymemory "github.com/dejobratic/storefront/internal/identity/adapters/memory"
	identitypostgres "github.com/dejobratic/storefront/internal/identity/adapters/postgres"
	identityports "github.com/dejobratic/storefront/internal/identity/ports"
	ordersadapters "github.com/dejobratic/storefront/internal/orders/adapters"
	ordersmemory "github.com/dejobratic/storefront/internal/orders/adapters/memory"
	orderspostgres "github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	ordersports "github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/payment"
	"go.opentelemetry.io/otel/metric"
)

// stores holds the repositories of every bounded context for the configured driver.
type stores struct {
	orders      ordersports.OrderRepository
	idempotency ordersports.IdempotencyStore
	users       identityports.UserRepository
	products    catalogports.ProductRepository
	carts       cartports.CartRepository
	readiness   map[string]httpserver.ReadinessCheck
	close       func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger, meter metric.Meter) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("memory store active, data is lost on restart")
		return &stores{
			orders:      ordersmemory.NewRepository(),
			idempotency: idemmemory.NewStore(),
			users:       identitymemory.NewRepository(),
			products:    catalogmemory.NewRepository(),
			carts:       cartmemory.NewRepository(),
			close:       func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed successfully")
	}

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create database metrics: %w", err)
	}

	return &stores{
		orders:      ordersadapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics),
		idempotency: idempostgres.NewStore(pool),
		users:       identitypostgres.NewRepository(pool),
		products:    catalogpostgres.NewRepository(pool),
		carts:       cartpostgres.NewRepository(pool),
		readiness: map[string]httpserver.ReadinessCheck{
			"database": func(ctx context.Context) error { return database.CheckHealth(ctx, pool) },
		},
		close: pool.Close,
	}, nil
}

type gateway struct {
	gateway ordersports.PaymentGateway
	// sandbox is set when the in-process gateway is active.
	sandbox *payment.Sandbox
}

func newGateway(cfg *config.Config, signer *payment.Signer) gateway {
	if cfg.Payment.Gateway == "sandbox" {
		sandbox := payment.NewSandbox(signer)
		return gateway{gateway: sandbox, sandbox: sandbox}
	}
	return gateway{gateway: payment.NewClient(payment.ClientConfig{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	})}
}

type eventBus struct {
	bus   ordersports.EventBus
	close func()
}

func newEventBus(cfg *config.Config, logger *slog.Logger, meter metric.Meter) (*eventBus, error) {
	eventMetrics, err := events.NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create event metrics: %w", err)
	}

	if cfg.Events.AMQPURL == "" {
		return &eventBus{
			bus:   ordersadapters.NewObservableEventBus(events.NewLoggingBus(logger), eventMetrics),
			close: func() {},
		}, nil
	}

	publisher, err := events.DialRabbit(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		return nil, fmt.Errorf("connect to event broker: %w", err)
	}
	logger.Info("publishing order events", "exchange", cfg.Events.Exchange)

	return &eventBus{
		bus: ordersadapters.NewObservableEventBus(publisher, eventMetrics),
		close: func() {
			if err := publisher.Close(); err != nil {
				logger.Error("failed to close event publisher", "error", err)
			}
		},
	}, nil
}
