// Package handlers provides HTTP handlers for stock market data.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/clients/marketdata"
)

// MarketData is the subset of the market data client used by the handlers
type MarketData interface {
	Search(ctx context.Context, query string) ([]marketdata.SearchResult, error)
	Quote(ctx context.Context, symbol string) (*marketdata.Quote, error)
	History(ctx context.Context, symbol, period string) (*marketdata.History, error)
	Company(ctx context.Context, symbol string) (*marketdata.Company, error)
}

// Handler handles stock HTTP requests
type Handler struct {
	market MarketData
	log    zerolog.Logger
}

// NewHandler creates a new stock handler
func NewHandler(market MarketData, log zerolog.Logger) *Handler {
	return &Handler{
		market: market,
		log:    log.With().Str("handler", "stocks").Logger(),
	}
}

// HandleSearch handles GET /api/stocks/search?query=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		h.writeError(w, http.StatusUnprocessableEntity, "query is required")
		return
	}

	results, err := h.market.Search(r.Context(), query)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Stock search failed")
		h.writeError(w, http.StatusInternalServerError, "Error searching for stocks")
		return
	}
	if results == nil {
		results = []marketdata.SearchResult{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// HandleQuote handles GET /api/stocks/{symbol}/quote
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := h.market.Quote(r.Context(), symbol)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote unavailable")
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("Quote not found for symbol: %s", symbol))
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

// HandleHistory handles GET /api/stocks/{symbol}/history?period=
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1M"
	}
	if !marketdata.ValidPeriod(period) {
		h.writeError(w, http.StatusUnprocessableEntity, "period must be one of 1D, 1W, 1M, 3M, 6M, 1Y, 5Y")
		return
	}

	history, err := h.market.History(r.Context(), symbol, period)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", symbol).Str("period", period).Msg("History unavailable")
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("Historical data not found for symbol: %s", symbol))
		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

// HandleCompany handles GET /api/stocks/{symbol}/company
func (h *Handler) HandleCompany(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	company, err := h.market.Company(r.Context(), symbol)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Company info unavailable")
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("Company information not found for symbol: %s", symbol))
		return
	}

	h.writeJSON(w, http.StatusOK, company)
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
