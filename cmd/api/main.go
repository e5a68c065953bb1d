// Package main is the entrypoint for the PingPanda API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pingpanda/pingpanda/internal/auth"
	"github.com/pingpanda/pingpanda/internal/cache"
	"github.com/pingpanda/pingpanda/internal/config"
	"github.com/pingpanda/pingpanda/internal/handler"
	"github.com/pingpanda/pingpanda/internal/metrics"
	"github.com/pingpanda/pingpanda/internal/middleware"
	"github.com/pingpanda/pingpanda/internal/notify"
	"github.com/pingpanda/pingpanda/internal/repository"
	"github.com/pingpanda/pingpanda/internal/server"
	"github.com/pingpanda/pingpanda/internal/service"
	"github.com/pingpanda/pingpanda/migrations"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		version, err := migrations.Up(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to apply migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("migrations applied", "version", version)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Validate already proved the zone loads.
	loc, _ := cfg.Location()
	clock := service.NewClock(loc)
	recorder := metrics.NewPrometheus()

	keyEnv := auth.EnvTest
	if cfg.IsProduction() {
		keyEnv = auth.EnvLive
	}
	keys := auth.NewKeyGenerator(keyEnv)

	var notifier service.Notifier
	if cfg.NotifyEnabled {
		notifier = notify.NewPublisher(cacheClient.Client(), logger.With("component", "notify"), recorder)
	}

	categoryService := service.NewCategoryService(repo, repo, cacheClient, clock, logger.With("component", "categories"), recorder)
	eventService := service.NewEventService(repo, categoryService, notifier, clock, logger.With("component", "events"), recorder)
	queryService := service.NewQueryService(repo, categoryService, clock)
	analyticsService := service.NewAnalyticsService(repo, categoryService, clock)
	accountService := service.NewAccountService(repo, keys, cacheClient, service.QuotaLimits{
		Free: cfg.DefaultQuotaLimit,
		Pro:  cfg.ProQuotaLimit,
	}, clock, logger.With("component", "accounts"))

	resolvers := auth.Chain{&auth.APIKeyResolver{Users: repo, Cache: cacheClient}}
	if cfg.SessionsEnabled() {
		resolvers = append(resolvers, &auth.SessionResolver{
			Identities: auth.NewJWTIdentityProvider(cfg.SessionJWTSecret, cfg.SessionIssuer, cfg.SessionCookieName),
			Users:      accountService,
		})
	} else {
		logger.Warn("session authentication disabled: SESSION_JWT_SECRET is empty")
	}

	handlers := routes{
		health:     handler.NewHealthHandler(repo, cacheClient),
		categories: handler.NewCategoryHandler(categoryService, queryService, analyticsService, logger),
		events:     handler.NewEventHandler(eventService, logger),
		accounts:   handler.NewAccountHandler(accountService, logger),
		metrics:    recorder.Handler(),
	}

	r := setupRouter(handlers, resolvers, cacheClient, recorder, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	if cfg.DeliveryWorkerEnabled {
		worker := notify.NewWorker(cacheClient.Client(), repo, logger.With("component", "delivery_worker"), notify.NewConsumerID(), recorder)
		go func() {
			if err := worker.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("delivery worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("delivery_worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"timezone", cfg.Timezone,
		"sessions", cfg.SessionsEnabled(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
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

type routes struct {
	health     *handler.HealthHandler
	categories *handler.CategoryHandler
	events     *handler.EventHandler
	accounts   *handler.AccountHandler
	metrics    http.Handler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routes,
	resolver auth.Resolver,
	cacheClient *cache.Cache,
	recorder metrics.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, recorder))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment()
	if cfg.MaxRequestBodySize > 0 {
		securityCfg.MaxRequestBodySize = cfg.MaxRequestBodySize
	}
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.MaxBodySize(securityCfg.MaxRequestBodySize))
	if origins := cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Method(http.MethodGet, "/metrics", h.metrics)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      logger,
		Cache:       cacheClient,
		Metrics:     recorder,
		UserEnabled: cfg.RateLimitAPIEnabled,
		IPEnabled:   cfg.RateLimitIPEnabled,
		IPRPS:       cfg.RateLimitIPRPS,
		IPBurst:     cfg.RateLimitIPBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger:   logger,
			Resolver: resolver,
			Metrics:  recorder,
		}))
		r.Use(middleware.RateLimitUser(rateLimitCfg))

		r.Post("/events", h.events.Ingest)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.categories.List)
			r.Post("/", h.categories.Create)
			r.Post("/quickstart", h.categories.Quickstart)
			r.Delete("/{name}", h.categories.Delete)
			r.Get("/{name}/poll", h.categories.Poll)
			r.Get("/{name}/events", h.categories.Events)
			r.Get("/{name}/analytics", h.categories.Analytics)
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/", h.accounts.Get)
			r.With(middleware.RequireSession).Post("/api-key", h.accounts.RotateAPIKey)
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
