package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/sellerhub-backend/api/controllers"
	"github.com/angelmondragon/sellerhub-backend/api/routes"
	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	"github.com/angelmondragon/sellerhub-backend/internal/checkout"
	"github.com/angelmondragon/sellerhub-backend/internal/lifecycle"
	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/env"
	"github.com/angelmondragon/sellerhub-backend/pkg/instance"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
	"github.com/angelmondragon/sellerhub-backend/pkg/migrate"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
	"github.com/angelmondragon/sellerhub-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	bootLog := logger.New(logger.Options{ServiceName: "api"})
	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "config.invalid", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID("api"),
	})

	if err := run(ctx, cfg, logg, addr); err != nil {
		logg.Error(ctx, "api.failed", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, addr string) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := wireServices(cfg, logg, dbClient, redisClient, reg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api.listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logg.Info(ctx, "api.stopped")
	return nil
}

// wireServices builds the domain services behind the router.
func wireServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg *prometheus.Registry) (routes.Deps, error) {
	var views catalog.ViewCache = catalog.NoopViewCache{}
	if cfg.FeatureFlags.ViewCache {
		views = catalog.NewRedisViewCache(redisClient, cfg.Catalog.ViewCacheTTL, logg)
	}

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	products := catalog.NewRepository(dbClient.DB())

	manager, err := lifecycle.NewManager(dbClient, products, events, views, metrics.NewLifecycleMetrics(reg), logg)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("lifecycle manager: %w", err)
	}
	catalogService, err := catalog.NewService(dbClient, products, manager, events, views, logg)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("catalog service: %w", err)
	}

	carts := cart.NewStore(cart.NewRepository(dbClient.DB()))
	pricer := cart.NewPricer(cfg.Pricing.TargetValue)
	cartService, err := cart.NewService(dbClient, carts, pricer, metrics.NewPricingMetrics(reg), logg)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("cart service: %w", err)
	}
	checkoutService, err := checkout.NewService(dbClient, carts, pricer, nil, events, logg)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("checkout service: %w", err)
	}

	return routes.Deps{
		Ready: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Idempotency: redisClient,
		Metrics:     reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Catalog:     catalogService,
		Lifecycle:   manager,
		Cart:        cartService,
		Checkout:    checkoutService,
	}, nil
}
