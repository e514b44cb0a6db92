package router

import (
	"net/http"

	"smartbuy-api/internal/handler"
	"smartbuy-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler      *handler.Handler
	FeedHandler  *handler.FeedHandler
	JobHandler   *handler.JobHandler
	RiskHandler  *handler.RiskHandler
	AdminHandler *handler.AdminHandler
	// JobSecret guards every /api/v1/internal route.
	JobSecret func(http.Handler) http.Handler
	// AllowedOrigins defaults to "*".
	AllowedOrigins []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID",
			middleware.HouseholdIDHeader, middleware.CronSecretHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.FeedHandler != nil {
			r.With(middleware.Household).Get("/feed", cfg.FeedHandler.GetFeed)
		}

		r.Route("/internal", func(r chi.Router) {
			guard := cfg.JobSecret
			if guard == nil {
				// No secret wired means no secret configured.
				guard = middleware.NewJobSecret("")
			}
			r.Use(guard)

			if cfg.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Get("/price-tracker", cfg.JobHandler.RunPriceTracker)
					r.Post("/price-tracker", cfg.JobHandler.RunPriceTracker)
					r.Get("/alert-evaluator", cfg.JobHandler.RunAlertEvaluator)
					r.Post("/alert-evaluator", cfg.JobHandler.RunAlertEvaluator)
				})
			}

			if cfg.RiskHandler != nil {
				r.Post("/offers/{offer_id}/risk", cfg.RiskHandler.Recompute)
			}

			if cfg.AdminHandler != nil {
				r.Get("/stats", cfg.AdminHandler.GetStats)
			}
		})
	})

	return r
}
