package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers stock routes. Market data is public.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/search", h.HandleSearch)
		r.Get("/{symbol}/quote", h.HandleQuote)
		r.Get("/{symbol}/history", h.HandleHistory)
		r.Get("/{symbol}/company", h.HandleCompany)
	})
}
