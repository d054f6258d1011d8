package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/licensegate-backend/internal/entitlements"
	"github.com/angelmondragon/licensegate-backend/internal/licenses"
	"github.com/angelmondragon/licensegate-backend/internal/linker"
	kofiwebhook "github.com/angelmondragon/licensegate-backend/internal/webhooks/kofi"
	"github.com/angelmondragon/licensegate-backend/pkg/config"
	"github.com/angelmondragon/licensegate-backend/pkg/db"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/migrate"
	"github.com/angelmondragon/licensegate-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/licensegate-backend/pkg/pubsub"
	"github.com/angelmondragon/licensegate-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "linker-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "linker-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	subscription := pubsubClient.AccountsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "accounts subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	consumer, err := linker.NewConsumer(linker.ConsumerParams{
		OrdersRepo:        kofiwebhook.NewRepository(dbClient.DB()),
		LicensesRepo:      licenses.NewRepository(dbClient.DB()),
		EntitlementsRepo:  entitlements.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Idempotency:       manager,
		Logger:            logg,
	})
	requireResource(ctx, logg, "linker consumer", err)

	service, err := NewService(subscription, consumer, logg)
	requireResource(ctx, logg, "linker worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.AccountsSubscription,
	})
	logg.Info(runCtx, "linker worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "linker worker failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "linker worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
