package stream

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the websocket endpoint at /stocks under the caller's prefix
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Handle("/stocks", h)
}
