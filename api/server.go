/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Timeout:    Bounds slow forecast computations
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/predictions/*    Forecasts and evaluation
  /api/patterns/*       Mined patterns
  /api/days, /events    Recorded history and demand events
  /api/settings/*       Runtime tunables
  /api/analytics/*      Comfort bands
  /api/scenarios/*      Demo history (dev only)
  /api/health           Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// DefaultRouterOptions allows the local frontend dev servers.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		RequestTimeout: 60 * time.Second,
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/predictions", func(r chi.Router) {
			r.Get("/next-week", h.NextWeek)
			r.Post("/next-week/save", h.SaveNextWeek)
			r.Get("/by-week", h.ByWeek)
			r.Get("/accuracy-history", h.AccuracyHistory)
			r.Post("/evaluate", h.Evaluate)
		})

		r.Route("/patterns", func(r chi.Router) {
			r.Get("/", h.ListPatterns)
			r.Post("/compute", h.ComputePatterns)
		})

		r.Route("/days", func(r chi.Router) {
			r.Get("/", h.ListDays)
			r.Post("/", h.SaveDay)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.ListSettings)
			r.Get("/{key}", h.GetSetting)
			r.Put("/{key}", h.PutSetting)
		})

		r.Get("/analytics/comfort", h.ComfortReport)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
