package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradefolio/tracker/internal/modules/portfolio"
	"github.com/tradefolio/tracker/internal/modules/users"
)

type stubValuer struct {
	err error
}

func (s stubValuer) Portfolio(_ context.Context, userID int64) (*portfolio.Portfolio, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &portfolio.Portfolio{
		CashBalance: decimal.NewFromInt(userID * 100),
		Holdings: []portfolio.HoldingValue{{
			Symbol:       "AAPL",
			Quantity:     decimal.NewFromInt(2),
			AverageCost:  decimal.NewFromInt(10),
			CurrentPrice: decimal.NewFromInt(12),
			MarketValue:  decimal.NewFromInt(24),
		}},
		NumberOfHoldings: 1,
	}, nil
}

func (s stubValuer) Performance(_ context.Context, userID int64) (*portfolio.Performance, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &portfolio.Performance{
		TotalValue:       decimal.NewFromInt(124),
		CashBalance:      decimal.NewFromInt(100),
		HoldingsValue:    decimal.NewFromInt(24),
		NumberOfHoldings: 1,
	}, nil
}

func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(users.ContextWithUser(r.Context(), &users.User{ID: 1})))
	})
}

func setup(v Valuer) http.Handler {
	r := chi.NewRouter()
	NewHandler(v, zerolog.Nop()).RegisterRoutes(r, withUser)
	return r
}

func get(h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHandleGetPortfolio(t *testing.T) {
	router := setup(stubValuer{})

	for _, path := range []string{"/portfolio", "/auth/portfolio"} {
		rec, body := get(router, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "100", body["cash_balance"])
		assert.Equal(t, float64(1), body["number_of_holdings"])

		holdings := body["holdings"].([]interface{})
		require.Len(t, holdings, 1)
		h := holdings[0].(map[string]interface{})
		assert.Equal(t, "AAPL", h["symbol"])
		assert.Equal(t, "24", h["market_value"])
	}
}

func TestHandleGetPerformance(t *testing.T) {
	router := setup(stubValuer{})

	for _, path := range []string{"/portfolio/performance", "/auth/performance"} {
		rec, body := get(router, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "124", body["total_value"])
		assert.Equal(t, "24", body["holdings_value"])
	}
}

func TestHandlers_Error(t *testing.T) {
	router := setup(stubValuer{err: errors.New("boom")})

	rec, body := get(router, "/portfolio")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])

	rec, _ = get(router, "/portfolio/performance")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlers_RequireAuth(t *testing.T) {
	r := chi.NewRouter()
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	NewHandler(stubValuer{}, zerolog.Nop()).RegisterRoutes(r, deny)

	for _, path := range []string{"/portfolio", "/portfolio/performance", "/auth/portfolio", "/auth/performance"} {
		rec, _ := get(r, path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
