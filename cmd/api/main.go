package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/licensegate-backend/api/routes"
	"github.com/angelmondragon/licensegate-backend/internal/accounts"
	"github.com/angelmondragon/licensegate-backend/internal/applications"
	"github.com/angelmondragon/licensegate-backend/internal/entitlements"
	"github.com/angelmondragon/licensegate-backend/internal/licenses"
	"github.com/angelmondragon/licensegate-backend/internal/tiers"
	kofiwebhook "github.com/angelmondragon/licensegate-backend/internal/webhooks/kofi"
	"github.com/angelmondragon/licensegate-backend/pkg/config"
	"github.com/angelmondragon/licensegate-backend/pkg/db"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/metrics"
	"github.com/angelmondragon/licensegate-backend/pkg/migrate"
	"github.com/angelmondragon/licensegate-backend/pkg/outbox"
	"github.com/angelmondragon/licensegate-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	validationMetrics := metrics.NewValidationMetrics(prometheus.DefaultRegisterer)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	applicationsRepo := applications.NewRepository(dbClient.DB())
	tiersRepo := tiers.NewRepository(dbClient.DB())
	licensesRepo := licenses.NewRepository(dbClient.DB())
	entitlementsRepo := entitlements.NewRepository(dbClient.DB())
	ordersRepo := kofiwebhook.NewRepository(dbClient.DB())
	profilesRepo := accounts.NewRepository(dbClient.DB())

	applicationsService, err := applications.NewService(applicationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create applications service", err)
		os.Exit(1)
	}

	tiersService, err := tiers.NewService(tiersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create tiers service", err)
		os.Exit(1)
	}

	entitlementsService, err := entitlements.NewService(licensesRepo, entitlementsRepo, dbClient, logg, validationMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlements service", err)
		os.Exit(1)
	}

	kofiService, err := kofiwebhook.NewService(kofiwebhook.ServiceParams{
		OrdersRepo:        ordersRepo,
		TierResolver:      tiersService,
		LicensesRepo:      licensesRepo,
		EntitlementsRepo:  entitlementsRepo,
		ProfilesRepo:      profilesRepo,
		TransactionRunner: dbClient,
		Dedup:             redisClient,
		Metrics:           webhookMetrics,
		Logger:            logg,
		VerificationToken: cfg.Kofi.VerificationToken,
		DedupTTL:          cfg.Kofi.IdempotencyTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create kofi webhook service", err)
		os.Exit(1)
	}

	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Repo:              profilesRepo,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		PasswordConfig:    cfg.Password,
		JWTConfig:         cfg.JWT,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:              cfg,
			Logger:              logg,
			DBPinger:            dbClient,
			RedisClient:         redisClient,
			AccountsService:     accountsService,
			ApplicationsService: applicationsService,
			TiersService:        tiersService,
			EntitlementsService: entitlementsService,
			KofiService:         kofiService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
