package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vitrineapp/cart-service/api/routes"
	"github.com/vitrineapp/cart-service/internal/cart"
	"github.com/vitrineapp/cart-service/internal/carts"
	"github.com/vitrineapp/cart-service/internal/cartsync"
	"github.com/vitrineapp/cart-service/internal/catalog"
	"github.com/vitrineapp/cart-service/pkg/config"
	"github.com/vitrineapp/cart-service/pkg/db"
	"github.com/vitrineapp/cart-service/pkg/logger"
	"github.com/vitrineapp/cart-service/pkg/metrics"
	"github.com/vitrineapp/cart-service/pkg/migrate"
	"github.com/vitrineapp/cart-service/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cart-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cart-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(registry)

	snapshotRepo := cartsync.NewRepository(dbClient.DB())
	coordinator, err := cartsync.NewCoordinator(snapshotRepo, logg, cartMetrics, cfg.Sync.DebounceInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync coordinator", err)
		os.Exit(1)
	}
	defer coordinator.Close()

	validator, err := catalog.NewValidator(catalog.NewProductRepository(dbClient.DB()), logg, cartMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog validator", err)
		os.Exit(1)
	}

	cartService, err := carts.NewService(
		func(userID string) cart.StateStore { return cart.NewRedisStateStore(redisClient, userID) },
		coordinator,
		validator,
		logg,
		cartMetrics,
		cfg.Sync,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	defer cartService.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting cart api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, cartService, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "cart api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
