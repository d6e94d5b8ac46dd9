package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/twopelicans/portal/internal/config"
	"github.com/twopelicans/portal/internal/handler"
	"github.com/twopelicans/portal/internal/middleware"
)

// routes collects what setupRouter mounts.
type routes struct {
	root     *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	sessions *handler.SessionHandler
	users    *handler.UserHandler
	messages *handler.MessageHandler
	contact  *handler.ContactHandler
	guard    middleware.Authenticator
	limiter  middleware.IPLimiter
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(rt routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(middleware.PortalCORSConfig(cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Get("/metrics", rt.metrics.Metrics)

	// Root info endpoint
	r.Get("/", rt.root.Root)

	limit := func(scope string) func(next http.Handler) http.Handler {
		return middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: rt.limiter,
			Enabled: cfg.RateLimitEnabled,
			Scope:   scope,
			RPS:     cfg.RateLimitLoginRPS,
			Burst:   cfg.RateLimitLoginBurst,
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.With(limit("login")).Post("/login", rt.sessions.Login)
		r.Post("/logout", rt.sessions.Logout)
		r.With(limit("contact")).Post("/contact", rt.contact.Submit)

		// Everything else needs a live session on an active profile
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(middleware.AuthConfig{Logger: logger, Guard: rt.guard}))
			r.Use(middleware.RequireActive(rt.guard))

			r.Get("/me", rt.sessions.Me)

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", rt.messages.List)
				r.Post("/", rt.messages.Send)
				r.Post("/{id}/read", rt.messages.MarkRead)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(rt.guard))
				r.Get("/", rt.users.List)
				r.Post("/", rt.users.Create)
				r.Patch("/", rt.users.Update)
				r.Delete("/", rt.users.Delete)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(rt.root.NotFound)
	r.MethodNotAllowed(rt.root.MethodNotAllowed)

	return r
}
