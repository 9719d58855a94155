/**
 * @description
 * This file sets up the HTTP router for the fuel service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the authentication and rate-limiting middleware.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling.
 * - github.com/prometheus/client_golang: /metrics exposition.
 */

package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carries the middleware dependencies of the router.
type RouterOptions struct {
	APIKey       string
	ReviewerKeys *JWKSKeySource
	RateLimiter  RateLimiter
	Gatherer     prometheus.Gatherer
	Logger       *slog.Logger
}

// NewRouter creates a new Chi router and registers the fuel service routes.
func NewRouter(h *Handlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthHandler)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyMiddleware(opts.APIKey))

		r.Route("/motoristas", func(r chi.Router) {
			r.Post("/", h.CreateDriverHandler)
			r.Get("/", h.ListDriversHandler)
			r.Get("/{id}", h.GetDriverHandler)
			r.Patch("/{id}", h.UpdateDriverHandler)
		})

		r.Route("/abastecimentos", func(r chi.Router) {
			r.With(RateLimitMiddleware(opts.RateLimiter, opts.Logger)).Post("/", h.CreateRefillHandler)
			r.Get("/", h.ListRefillsHandler)
			r.Get("/summary", h.RefillSummaryHandler)
			r.Get("/{id}", h.GetRefillHandler)

			r.Group(func(r chi.Router) {
				r.Use(ReviewerAuthMiddleware(opts.ReviewerKeys, opts.Logger))
				r.Post("/{id}/approve", h.ApproveRefillHandler)
				r.Post("/{id}/reject", h.RejectRefillHandler)
			})
		})

		r.Get("/anomalias/score", h.ScoreHandler)
	})

	return r
}
