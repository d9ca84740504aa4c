// Command storefrontd serves the storefront HTTP API.
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

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/api"
	audithook "github.com/xraph/storefront/audit_hook"
	"github.com/xraph/storefront/eventbus"
	"github.com/xraph/storefront/mailer"
	"github.com/xraph/storefront/observability"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/store"
	fsstore "github.com/xraph/storefront/store/firestore"
	"github.com/xraph/storefront/store/memory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storefrontd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.slogLevel()}))
	slog.SetDefault(logger)

	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	secret, err := secretSource(ctx, cfg)
	if err != nil {
		return err
	}
	keySecret, err := secret.Secret(ctx)
	if err != nil {
		return fmt.Errorf("load gateway secret: %w", err)
	}

	gwOpts := []payment.GatewayOption{payment.WithGatewayLogger(logger)}
	if cfg.Gateway.BaseURL != "" {
		gwOpts = append(gwOpts, payment.WithBaseURL(cfg.Gateway.BaseURL))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPrometheusFactory(reg)

	opts := []storefront.Option{
		storefront.WithLogger(logger),
		storefront.WithGateway(payment.NewHTTPGateway(cfg.Gateway.KeyID, keySecret, gwOpts...)),
		storefront.WithSecret(secret),
		storefront.WithCurrency(cfg.Currency),
		storefront.WithCartCacheSize(cfg.CartCacheSize),
		storefront.WithExtension(observability.NewMetricsExtension(metrics)),
		storefront.WithExtension(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
	}

	if cfg.Kafka.Brokers != "" {
		pub := eventbus.New(eventbus.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic),
			eventbus.WithLogger(logger),
			eventbus.WithCartEvents(cfg.Kafka.CartEvents),
		)
		opts = append(opts, storefront.WithExtension(pub))
	}

	if cfg.SendGrid.APIKey != "" {
		m, err := mailer.New(mailer.Config{
			APIKey:    cfg.SendGrid.APIKey,
			FromEmail: cfg.SendGrid.FromEmail,
			FromName:  cfg.SendGrid.FromName,
			StoreName: cfg.SendGrid.StoreName,
		}, logger)
		if err != nil {
			return err
		}
		opts = append(opts, storefront.WithExtension(m))
	}

	sf, err := storefront.New(st, opts...)
	if err != nil {
		return err
	}
	if err := sf.Start(ctx); err != nil {
		return err
	}

	if cfg.SeedFile != "" {
		seed, err := readSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.apply(ctx, sf, logger); err != nil {
			return err
		}
	}

	srv := api.New(sf,
		api.WithLogger(logger),
		api.WithBasePath(cfg.BasePath),
		api.WithMetricsHandler(metrics.Handler()),
		api.WithRequestMetrics(reg),
		api.WithSessionCookie(cfg.Session.MaxAge, cfg.Session.Secure),
	)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := sf.Stop(shutdownCtx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		return fsstore.New(client), nil
	default:
		return memory.New(), nil
	}
}

func secretSource(ctx context.Context, cfg Config) (payment.SecretSource, error) {
	if cfg.Gateway.SecretName == "" {
		return payment.StaticSecret(cfg.Gateway.KeySecret), nil
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}
	project := cfg.Gateway.ProjectID
	if project == "" {
		project = cfg.Store.ProjectID
	}
	return payment.NewSecretManagerSource(client, project, cfg.Gateway.SecretName, ""), nil
}

// auditLog writes audit events to the structured log.
func auditLog(logger *slog.Logger) audithook.RecorderFunc {
	audit := logger.With("component", "audit")
	return func(ctx context.Context, evt *audithook.AuditEvent) error {
		audit.InfoContext(ctx, evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"category", evt.Category,
			"outcome", evt.Outcome,
			"severity", evt.Severity,
			"reason", evt.Reason,
			"metadata", evt.Metadata,
		)
		return nil
	}
}
