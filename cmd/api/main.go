package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/storefront/internal/auth"
	cartadapters "github.com/dejobratic/storefront/internal/cart/adapters"
	carthttp "github.com/dejobratic/storefront/internal/cart/adapters/http"
	cartapp "github.com/dejobratic/storefront/internal/cart/app"
	cataloghttp "github.com/dejobratic/storefront/internal/catalog/adapters/http"
	catalogapp "github.com/dejobratic/storefront/internal/catalog/app"
	"github.com/dejobratic/storefront/internal/config"
	"github.com/dejobratic/storefront/internal/httpserver"
	identityadapters "github.com/dejobratic/storefront/internal/identity/adapters"
	identityhttp "github.com/dejobratic/storefront/internal/identity/adapters/http"
	identityapp "github.com/dejobratic/storefront/internal/identity/app"
	ordersadapters "github.com/dejobratic/storefront/internal/orders/adapters"
	ordershttp "github.com/dejobratic/storefront/internal/orders/adapters/http"
	ordersapp "github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/payment"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine outside local development.
	_ = godotenv.Load()

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

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting api", "config", cfg.String())

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
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
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	meter := tel.Meter(cfg.Service.Name)
	ordersMetrics, err := metrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create order metrics: %w", err)
	}
	httpMetrics, err := httpserver.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	st, err := openStores(ctx, cfg, logger, meter)
	if err != nil {
		return err
	}
	defer st.close()

	signer, err := payment.NewSigner(cfg.Payment.WebhookSecret)
	if err != nil {
		return fmt.Errorf("create payment signer: %w", err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}

	gw := newGateway(cfg, signer)

	bus, err := newEventBus(cfg, logger, meter)
	if err != nil {
		return err
	}
	defer bus.close()

	orders := ordersapp.NewService(ordersapp.Dependencies{
		Repo:           st.orders,
		Gateway:        ordersadapters.NewObservableGateway(gw.gateway, ordersMetrics),
		Verifier:       signer,
		Events:         bus.bus,
		Idempotency:    st.idempotency,
		Logger:         logger,
		Metrics:        ordersMetrics,
		Currency:       cfg.Payment.Currency,
		GatewayTimeout: cfg.Payment.Timeout,
	})

	identity := identityapp.NewService(st.users, identityadapters.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, logger)
	if cfg.Auth.AdminEmail != "" {
		changed, err := identity.EnsureAdmin(ctx, identityapp.RegisterInput{
			Name:     cfg.Auth.AdminName,
			Email:    cfg.Auth.AdminEmail,
			Password: cfg.Auth.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if changed {
			logger.Info("bootstrap admin ready", "email", cfg.Auth.AdminEmail)
		}
	}

	catalog := catalogapp.NewService(st.products, orders, identity, logger)
	cart := cartapp.NewService(st.carts, cartadapters.NewCatalogLookup(catalog), logger)

	modules := []httpserver.Module{
		identityhttp.NewHandler(identity, tokens, cfg.Auth.CookieSecure, logger),
		cataloghttp.NewHandler(catalog, tokens, logger),
		carthttp.NewHandler(cart, tokens, logger),
		ordershttp.NewHandler(orders, tokens, logger),
	}
	if gw.sandbox != nil {
		logger.Warn("sandbox payment gateway active, payments are simulated")
		modules = append(modules, payment.NewSandboxCheckout(gw.sandbox, tokens, logger))
	}

	router := httpserver.NewRouter(httpserver.Options{
		Logger:      logger,
		Metrics:     httpMetrics,
		ServiceName: cfg.Service.Name,
		CORSOrigin:  cfg.HTTP.CORSOrigin,
		Readiness:   st.readiness,
	}, modules...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
