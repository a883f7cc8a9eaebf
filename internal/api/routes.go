package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/scheduled", h.HandleListScheduled)
			r.Get("/scheduling-stats", h.HandleSchedulingStats)
			r.Post("/{campaignId}/schedule", h.HandleScheduleCampaign)
			r.Post("/{campaignId}/cancel", h.HandleCancelSchedule)
			r.Post("/{campaignId}/reschedule", h.HandleRescheduleCampaign)
		})

		r.Route("/imports", func(r chi.Router) {
			r.Post("/validate-targets", h.HandleValidateTargets)
			r.Post("/{jobId}/process", h.HandleProcessImport)
			r.Get("/{jobId}/statistics", h.HandleImportStatistics)
			r.Get("/{jobId}/progress", h.HandleImportProgress)
		})
	})

	return r
}
