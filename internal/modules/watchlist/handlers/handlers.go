// Package handlers provides HTTP handlers for watchlists.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradefolio/tracker/internal/modules/users"
	"github.com/tradefolio/tracker/internal/modules/watchlist"
	"github.com/tradefolio/tracker/pkg/validation"
)

// Handler handles watchlist HTTP requests
type Handler struct {
	service  *watchlist.Service
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new watchlist handler
func NewHandler(service *watchlist.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validation.New(),
		log:      log.With().Str("handler", "watchlist").Logger(),
	}
}

type addRequest struct {
	Symbol      string              `json:"symbol" validate:"required,max=16"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	Notes       string              `json:"notes" validate:"max=500"`
}

type itemResponse struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	Symbol      string              `json:"symbol"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	Notes       *string             `json:"notes"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toResponse(item *watchlist.Item) itemResponse {
	resp := itemResponse{
		ID:          item.ID,
		UserID:      item.UserID,
		Symbol:      item.Symbol,
		TargetPrice: item.TargetPrice,
		CreatedAt:   item.AddedAt,
	}
	if item.Notes != "" {
		notes := item.Notes
		resp.Notes = &notes
	}
	return resp
}

// HandleAdd handles POST /api/watchlist
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, validation.Message(err))
		return
	}
	if req.TargetPrice.Valid && !req.TargetPrice.Decimal.IsPositive() {
		h.writeError(w, http.StatusUnprocessableEntity, "target_price must be greater than 0")
		return
	}

	item, err := h.service.Add(r.Context(), user.ID, watchlist.AddInput{
		Symbol:      req.Symbol,
		TargetPrice: req.TargetPrice,
		Notes:       req.Notes,
	})
	if err != nil {
		var dup *watchlist.DuplicateError
		if errors.As(err, &dup) {
			h.writeError(w, http.StatusBadRequest, dup.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to add watchlist item")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toResponse(item))
}

// HandleList handles GET /api/watchlist
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	items, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list watchlist")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleRemove handles DELETE /api/watchlist/{id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "Invalid watchlist id")
		return
	}

	if err := h.service.Remove(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, watchlist.ErrItemNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to remove watchlist item")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
