/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client IP behind proxies
  3. RequestLogger: zap request logging + Prometheus metrics
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/routes/*       Route records and baseline comparison
  /api/compliance/*   Balance calculation and ledger reads
  /api/banking/*      Surplus banking ledger
  /api/pools/*        Compliance pooling
  /api/admin/*        Demo data seeding
  /health             Liveness probe
  /metrics            Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tidewater/fueleu-engine/obs"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RequestLogger(h.Logger, h.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Route records
		r.Route("/routes", func(r chi.Router) {
			r.Get("/", h.ListRoutes)
			r.Post("/", h.CreateRoute)
			r.Get("/comparison", h.CompareRoutes)
			r.Get("/{id}", h.GetRoute)
			r.Post("/{id}/baseline", h.SetBaseline)
		})

		// Compliance ledger
		r.Route("/compliance", func(r chi.Router) {
			r.Get("/cb", h.CBSummary)
			r.Get("/adjusted-cb", h.FleetCompliance)
			r.Get("/cb/{shipId}/{year}", h.GetCB)
			r.Post("/cb/{shipId}/{year}", h.CalculateCB)
		})

		// Banking
		r.Route("/banking", func(r chi.Router) {
			r.Post("/bank", h.BankSurplus)
			r.Post("/apply", h.ApplyBanked)
			r.Get("/total/{shipId}", h.TotalBanked)
			r.Get("/records", h.BankingRecords)
		})

		// Pooling
		r.Route("/pools", func(r chi.Router) {
			r.Post("/", h.CreatePool)
			r.Get("/{poolId}/members", h.PoolMembers)
		})

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.SeedDemoData)
		})
	})

	// Operational endpoints
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{}))

	return r
}
