package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkessler/libmirror/internal/api/handler"
	mw "github.com/mkessler/libmirror/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	exportHandler *handler.ExportHandler,
	collectionsHandler *handler.CollectionsHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/collections", collectionsHandler.List)

		r.Post("/export", exportHandler.Start)
		r.Get("/export/status", exportHandler.Status)
		r.Post("/export/cancel", exportHandler.Cancel)
	})

	return r
}
