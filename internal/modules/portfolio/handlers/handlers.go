// Package handlers provides HTTP handlers for portfolio valuation.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/modules/portfolio"
	"github.com/tradefolio/tracker/internal/modules/users"
)

// Valuer produces portfolio reports
type Valuer interface {
	Portfolio(ctx context.Context, userID int64) (*portfolio.Portfolio, error)
	Performance(ctx context.Context, userID int64) (*portfolio.Performance, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service Valuer
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service Valuer, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns holdings valued at current prices
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	report, err := h.service.Portfolio(r.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to value portfolio")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// HandleGetPerformance returns total value and gains
func (h *Handler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	report, err := h.service.Performance(r.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to compute performance")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
