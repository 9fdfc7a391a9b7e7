package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers watchlist routes behind auth
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/watchlist", func(r chi.Router) {
		r.Use(auth)

		r.Post("/", h.HandleAdd)
		r.Get("/", h.HandleList)
		r.Delete("/{id}", h.HandleRemove)
	})
}
