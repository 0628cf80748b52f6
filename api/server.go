/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/accounts/*      Accounts and derived views (statement, invoice)
  /api/movements/*     Ledger movements
  /api/sales/*         Sale records
  /api/investments/*   Partner investment transactions
  /api/audit           Audit trail

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. The allowed
// CORS origins come from the service configuration.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Put("/", h.ReplaceAccounts)
			r.Post("/delete-many", h.DeleteAccounts)
			r.Get("/{id}", h.GetAccount)
			r.Put("/{id}", h.UpdateAccount)
			r.Delete("/{id}", h.DeleteAccount)
			r.Get("/{id}/statement", h.GetStatement)
			r.Get("/{id}/compare", h.ComparePeriods)
			r.Get("/{id}/invoice", h.GetInvoice)
			r.Get("/{id}/card-summary", h.GetCardSummary)
		})

		// Movement routes
		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.ListMovements)
			r.Post("/", h.CreateMovement)
			r.Put("/", h.ReplaceMovements)
			r.Post("/batch", h.CreateMovements)
			r.Post("/delete-many", h.DeleteMovements)
			r.Get("/{id}", h.GetMovement)
			r.Put("/{id}", h.UpdateMovement)
			r.Delete("/{id}", h.DeleteMovement)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
			r.Put("/", h.ReplaceSales)
			r.Post("/delete-many", h.DeleteSales)
			r.Get("/{id}", h.GetSale)
			r.Put("/{id}", h.UpdateSale)
			r.Delete("/{id}", h.DeleteSale)
		})

		// Investment routes
		r.Route("/investments", func(r chi.Router) {
			r.Get("/", h.ListInvestments)
			r.Post("/", h.CreateInvestment)
			r.Put("/", h.ReplaceInvestments)
			r.Post("/delete-many", h.DeleteInvestments)
			r.Get("/{id}", h.GetInvestment)
			r.Put("/{id}", h.UpdateInvestment)
			r.Delete("/{id}", h.DeleteInvestment)
		})

		// Audit routes
		r.Get("/audit", h.GetAudit)
	})

	return r
}
