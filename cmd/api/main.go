// Package main is the entrypoint for the recipebook API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/cache"
	"github.com/recipebook/recipebook/internal/config"
	"github.com/recipebook/recipebook/internal/handler"
	"github.com/recipebook/recipebook/internal/logging"
	"github.com/recipebook/recipebook/internal/media"
	"github.com/recipebook/recipebook/internal/metrics"
	"github.com/recipebook/recipebook/internal/middleware"
	"github.com/recipebook/recipebook/internal/model"
	"github.com/recipebook/recipebook/internal/repository"
	"github.com/recipebook/recipebook/internal/server"
	"github.com/recipebook/recipebook/internal/service"
	"github.com/recipebook/recipebook/migrations"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if err := migrations.Run(ctx, repo.Pool(), logger); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		repo.Close()
		os.Exit(1)
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithAuthTTL(cfg.AuthCacheTTL))
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	images, err := media.NewDiskStore(cfg.MediaRoot)
	if err != nil {
		logger.Error("failed to open media root", "media_root", cfg.MediaRoot, "error", err)
		repo.Close()
		_ = cacheClient.Close()
		os.Exit(1)
	}

	recorder := metrics.NewPrometheus()

	userService := service.NewUserService(repo, repo, auth.NewHasher(auth.DefaultParams), recorder)
	catalogService := service.NewCatalogService(repo)
	recipeService := service.NewRecipeService(repo, repo, images, recorder)

	r := setupRouter(routerDeps{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		cache:   cacheClient,
		metrics: recorder,
		users:   userService,
		catalog: catalogService,
		recipes: recipeService,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"media_root", cfg.MediaRoot,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

type routerDeps struct {
	cfg     *config.Config
	logger  *slog.Logger
	repo    *repository.Repository
	cache   *cache.Cache
	metrics *metrics.PrometheusRecorder
	users   *service.UserService
	catalog *service.CatalogService
	recipes *service.RecipeService
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg, logger := d.cfg, d.logger

	healthHandler := handler.NewHealthHandler(d.repo, d.cache)
	userHandler := handler.NewUserHandler(d.users, d.cache, logger)
	adminHandler := handler.NewAdminHandler(d.users, logger)
	tagHandler := handler.NewCatalogHandler(d.catalog, model.KindTag, logger)
	ingredientHandler := handler.NewCatalogHandler(d.catalog, model.KindIngredient, logger)
	recipeHandler := handler.NewRecipeHandler(d.recipes, cfg.BaseURL, cfg.MaxUploadSize, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.StripSlashes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	// Probes and metrics (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Method(http.MethodGet, "/metrics", d.metrics.Handler())

	authMiddleware := middleware.Auth(middleware.AuthConfig{
		Logger:        logger,
		Authenticator: d.users,
		Cache:         d.cache,
		Metrics:       d.metrics,
		MinDuration:   cfg.AuthMinDuration,
	})

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:           logger,
		Limiter:          d.cache,
		APIEnabled:       cfg.RateLimitAPIEnabled,
		APIRatePerMinute: cfg.RateLimitAPIRPM,
		APIBurst:         cfg.RateLimitAPIBurst,
		IPEnabled:        cfg.RateLimitRegisterEnabled,
		IPRatePerSecond:  cfg.RateLimitRegisterRPS,
		IPBurst:          cfg.RateLimitRegisterBurst,
	}

	jsonLimit := middleware.MaxBodySize(cfg.MaxRequestBodySize)

	r.Route("/api/v1", func(r chi.Router) {
		// Public account endpoints
		r.With(jsonLimit, middleware.RateLimitIP(rateLimitCfg)).Post("/users", userHandler.Register)
		r.With(jsonLimit, middleware.LoginRateLimit(cfg.RateLimitLoginPerMinute)).Post("/users/token", userHandler.IssueToken)

		// Everything else requires a token
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Group(func(r chi.Router) {
				r.Use(jsonLimit)

				r.Delete("/users/token", userHandler.RevokeToken)
				r.Route("/users/me", func(r chi.Router) {
					r.Get("/", userHandler.Me)
					r.Put("/", userHandler.ReplaceMe)
					r.Patch("/", userHandler.UpdateMe)
				})

				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireStaff)
					r.Get("/users", adminHandler.ListUsers)
				})

				mountCatalog(r, "/tags", tagHandler)
				mountCatalog(r, "/ingredients", ingredientHandler)
			})

			r.Route("/recipes", func(r chi.Router) {
				// Uploads are bounded by MAX_UPLOAD_SIZE inside the handler.
				r.Post("/{id}/upload-image", recipeHandler.UploadImage)

				r.Group(func(r chi.Router) {
					r.Use(jsonLimit)
					r.Get("/", recipeHandler.List)
					r.Post("/", recipeHandler.Create)
					r.Get("/{id}", recipeHandler.Get)
					r.Put("/{id}", recipeHandler.Replace)
					r.Patch("/{id}", recipeHandler.Update)
					r.Delete("/{id}", recipeHandler.Delete)
					r.Get("/{id}/image", recipeHandler.Image)
				})
			})
		})
	})

	return r
}

func mountCatalog(r chi.Router, pattern string, h *handler.CatalogHandler) {
	r.Route(pattern, func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError removes connection secrets from an error message.
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
