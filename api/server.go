/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through the logger package
  3. Metrics:    Prometheus counters by route pattern (when enabled)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the booking screen

ROUTE GROUPS:
  /healthz              Liveness
  /metrics              Prometheus exposition (when enabled)
  /api/employees/*      Directory lookups
  /api/reservations     Snapshot and admission
  /api/days/*           Day view and preview
  /api/calendar         Month grid
  /api/reports/*        Monthly report
  /api/admin/*          Imports and diagnostics (password protected)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Logging, metrics and admin guard
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/agenda/logger"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string

	// Observer receives per-request metrics. Nil disables them.
	Observer HTTPObserver

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	Logger logger.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	if cfg.Observer != nil {
		r.Use(Metrics(cfg.Observer))
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", AdminPasswordHeader},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Get("/healthz", h.Health)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{number}", h.GetEmployee)
		})
		r.Get("/teams", h.ListTeams)

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", h.ListReservations)
			r.Post("/", h.CreateReservation)
		})

		r.Route("/days/{date}", func(r chi.Router) {
			r.Get("/", h.GetDay)
			r.Get("/preview", h.PreviewDay)
		})

		r.Get("/calendar", h.GetCalendar)
		r.Get("/reports/monthly", h.GetMonthlyReport)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(h.adminPassword))
			r.Post("/import/reservations", h.ImportReservations)
			r.Post("/import/employees", h.ImportEmployees)
			r.Get("/diagnostics", h.Diagnostics)
		})
	})

	return r
}
