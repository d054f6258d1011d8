package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/licensegate-backend/api/controllers"
	"github.com/angelmondragon/licensegate-backend/api/middleware"
	"github.com/angelmondragon/licensegate-backend/internal/accounts"
	"github.com/angelmondragon/licensegate-backend/internal/applications"
	"github.com/angelmondragon/licensegate-backend/internal/entitlements"
	"github.com/angelmondragon/licensegate-backend/internal/tiers"
	kofiwebhook "github.com/angelmondragon/licensegate-backend/internal/webhooks/kofi"
	"github.com/angelmondragon/licensegate-backend/pkg/config"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config              *config.Config
	Logger              *logger.Logger
	DBPinger            controllers.Pinger
	RedisClient         *redis.Client
	AccountsService     accounts.Service
	ApplicationsService applications.Service
	TiersService        tiers.Service
	EntitlementsService entitlements.Service
	KofiService         *kofiwebhook.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DBPinger, p.RedisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Ko-fi signs nothing; the verification token inside the payload is the
	// only authentication, checked in the service.
	r.Post("/webhook/kofi", controllers.KofiWebhook(p.KofiService, logg))

	r.Route("/api/v1/accounts", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.RedisClient, logg)).
			With(middleware.Idempotency(p.RedisClient, logg)).
			Post("/register", controllers.AccountRegister(p.AccountsService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.RedisClient, logg)).
			Post("/login", controllers.AccountLogin(p.AccountsService, logg))
	})

	// SDK protocol: application credentials first, then the bearer token.
	// Each endpoint keeps its own flat rejection shape.
	r.Route("/api/v1/licenses", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AppAuth(p.ApplicationsService, logg, controllers.ActivateUnauthorizedWriter))
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/activate", controllers.LicenseActivate(p.EntitlementsService, logg))
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.AppAuth(p.ApplicationsService, logg, controllers.ValidateUnauthorizedWriter))
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/validate", controllers.LicenseValidate(p.EntitlementsService, logg))
			r.Post("/validate", controllers.LicenseValidate(p.EntitlementsService, logg))
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(p.RedisClient, logg))

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", controllers.ApplicationCreate(p.ApplicationsService, logg))
			r.Get("/", controllers.ApplicationList(p.ApplicationsService, logg))
			r.Get("/{applicationID}", controllers.ApplicationGet(p.ApplicationsService, logg))
			r.Patch("/{applicationID}", controllers.ApplicationUpdate(p.ApplicationsService, logg))
			r.Delete("/{applicationID}", controllers.ApplicationDelete(p.ApplicationsService, logg))
		})

		r.Route("/tiers", func(r chi.Router) {
			r.Post("/", controllers.TierCreate(p.TiersService, logg))
			r.Get("/", controllers.TierList(p.TiersService, logg))
			r.Get("/{tierID}", controllers.TierGet(p.TiersService, logg))
			r.Put("/{tierID}", controllers.TierUpdate(p.TiersService, logg))
			r.Delete("/{tierID}", controllers.TierDelete(p.TiersService, logg))
		})
	})

	return r
}
