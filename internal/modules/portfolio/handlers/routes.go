package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio routes behind auth.
// The /auth/portfolio and /auth/performance aliases are kept for older clients.
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Use(auth)

		r.Get("/", h.HandleGetPortfolio)
		r.Get("/performance", h.HandleGetPerformance)
	})

	r.With(auth).Get("/auth/portfolio", h.HandleGetPortfolio)
	r.With(auth).Get("/auth/performance", h.HandleGetPerformance)
}
