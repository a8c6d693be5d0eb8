/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects the collaborator endpoints to
  handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging (paths and status only; no bodies)
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

SECURITY NOTE:
  Authentication is handled by the platform gateway in front of this
  service; these routes trust their callers.

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

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Registration service + read surface
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.RegisterAccount)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/vouchers", h.GetVouchers)
		})

		// Order/Subscription service milestones
		r.Route("/events", func(r chi.Router) {
			r.Post("/order-completed", h.OrderCompleted)
			r.Post("/subscription-completed", h.SubscriptionCompleted)
		})

		// Checkout + voucher shop
		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/templates", h.ListTemplates)
			r.Post("/issue", h.IssueVoucher)
			r.Post("/validate", h.ValidateVoucher)
			r.Post("/redeem", h.RedeemVoucher)
		})

		// Points-to-cash
		r.Post("/exchange", h.ExchangePoints)

		// Admin service
		r.Route("/admin", func(r chi.Router) {
			r.Post("/adjustments", h.CreateAdjustment)
			r.Post("/vouchers/{code}/deactivate", h.DeactivateVoucher)
		})
	})

	return r
}
