package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jokr/taaskly/internal/api/middleware"
	"github.com/jokr/taaskly/internal/config"
	"github.com/jokr/taaskly/internal/webhook"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *webhook.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(256 * 1024)) // webhook payloads stay small

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Signature verification runs on every POST; it only records the
	// verdict, enforcement happens per-handler after audit recording.
	r.Use(middleware.XHub(cfg.AppSecret, logger))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	// Webhook endpoints
	r.Get("/callback", h.VerifyChallenge)
	r.Post("/callback", h.MessageCallback)
	r.Post("/link/callback", h.LinkCallback)
	r.Post("/page/callback", h.PageCallback)
	r.Post("/community_uninstall", h.CommunityUninstall)

	// Operator endpoints
	r.Post("/admin/callbacks/purge", h.PurgeCallbacks)

	return r
}
