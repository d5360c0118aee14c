/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the web client

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. flyerDir,
// when non-empty, is served under /flyers for locally stored uploads.
func NewRouter(h *Handler, flyerDir string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Staging batches
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", h.CreateBatch)
			r.Route("/{batchID}", func(r chi.Router) {
				r.Get("/", h.GetBatch)
				r.Post("/select-all", h.SelectAll)
				r.Post("/deselect-all", h.DeselectAll)
				r.Post("/submit", h.Submit)
				r.Post("/general-flyer", h.ApplyGeneralFlyer)
				r.Post("/publish", h.Publish)
				r.Get("/pending-flyers", h.PendingFlyers)

				r.Route("/rows", func(r chi.Router) {
					r.Post("/", h.AddRow)
					r.Post("/generate", h.GenerateSeries)
					r.Route("/{rowID}", func(r chi.Router) {
						r.Patch("/", h.UpdateRow)
						r.Delete("/", h.RemoveRow)
						r.Post("/toggle", h.ToggleRow)
						r.Post("/flyer", h.UploadFlyer)
						r.Post("/flyer/retry", h.RetryFlyer)
						r.Delete("/flyer", h.RemoveFlyer)
					})
				})
			})
		})

		// Read path
		r.Route("/organizers/{id}", func(r chi.Router) {
			r.Get("/occurrences", h.ListOccurrences)
			r.Get("/occurrences.ics", h.OccurrencesICS)
			r.Get("/locations", h.ListLocations)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Locally stored flyers
	if flyerDir != "" {
		fileServer := http.StripPrefix("/flyers/", http.FileServer(http.Dir(flyerDir)))
		r.Get("/flyers/*", fileServer.ServeHTTP)
	}

	return r
}
