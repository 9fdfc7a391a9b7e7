// Package handlers provides HTTP handlers for ledger transactions.
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

	"github.com/tradefolio/tracker/internal/modules/ledger"
	"github.com/tradefolio/tracker/internal/modules/users"
	"github.com/tradefolio/tracker/pkg/validation"
)

// Handler handles transaction HTTP requests
type Handler struct {
	ledger   ledger.Service
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new transaction handler
func NewHandler(service ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:   service,
		validate: validation.New(),
		log:      log.With().Str("handler", "transactions").Logger(),
	}
}

type createTransactionRequest struct {
	TransactionType string          `json:"transaction_type" validate:"required,oneof=BUY SELL DEPOSIT WITHDRAWAL"`
	Symbol          string          `json:"symbol" validate:"max=16"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Fees            decimal.Decimal `json:"fees"`
	Notes           string          `json:"notes" validate:"max=500"`
	TransactionDate *time.Time      `json:"transaction_date"`
}

type transactionResponse struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	TransactionType string           `json:"transaction_type"`
	Symbol          *string          `json:"symbol"`
	Quantity        *decimal.Decimal `json:"quantity"`
	Price           *decimal.Decimal `json:"price"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	Fees            decimal.Decimal  `json:"fees"`
	Notes           *string          `json:"notes"`
	TransactionDate time.Time        `json:"transaction_date"`
	CreatedAt       time.Time        `json:"created_at"`
}

func toResponse(tx *ledger.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:              tx.ID,
		UserID:          tx.UserID,
		TransactionType: string(tx.Kind),
		TotalAmount:     tx.TotalAmount,
		Fees:            tx.Fees,
		TransactionDate: tx.TransactionDate,
		CreatedAt:       tx.CreatedAt,
	}
	if tx.Kind.IsTrade() {
		symbol, quantity, price := tx.Symbol, tx.Quantity, tx.Price
		resp.Symbol = &symbol
		resp.Quantity = &quantity
		resp.Price = &price
	}
	if tx.Notes != "" {
		notes := tx.Notes
		resp.Notes = &notes
	}
	return resp
}

// HandleCreate handles POST /api/transactions
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, validation.Message(err))
		return
	}

	ledgerReq := ledger.Request{
		Kind:        ledger.Kind(req.TransactionType),
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		Price:       req.Price,
		TotalAmount: req.TotalAmount,
		Fees:        req.Fees,
		Notes:       req.Notes,
	}
	if req.TransactionDate != nil {
		ledgerReq.TransactionDate = *req.TransactionDate
	}

	tx, err := h.ledger.Apply(r.Context(), user.ID, ledgerReq)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toResponse(tx))
}

// HandleList handles GET /api/transactions
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	txs, err := h.ledger.List(r.Context(), user.ID)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for i := range txs {
		resp = append(resp, toResponse(&txs[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /api/transactions/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "Invalid transaction id")
		return
	}

	tx, err := h.ledger.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(tx))
}

// HandleDelete handles DELETE /api/transactions/{id} by reversing the transaction
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := users.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, users.ErrInvalidToken.Error())
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "Invalid transaction id")
		return
	}

	if err := h.ledger.Reverse(r.Context(), user.ID, id); err != nil {
		h.writeLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeLedgerError maps ledger error kinds to HTTP statuses
func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	kind, ok := ledger.KindOf(err)
	if !ok {
		h.log.Error().Err(err).Msg("Ledger operation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := http.StatusBadRequest
	switch kind {
	case ledger.InvalidRequest:
		status = http.StatusUnprocessableEntity
	case ledger.NotFound:
		status = http.StatusNotFound
	}

	var lerr *ledger.Error
	errors.As(err, &lerr)
	h.writeError(w, status, lerr.Message)
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
