package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradefolio/tracker/internal/database"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteUnitOfWork runs ledger operations inside one SQL transaction on tracker.db
type SQLiteUnitOfWork struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteUnitOfWork creates a unit of work over the tracker database
func NewSQLiteUnitOfWork(db *sql.DB, log zerolog.Logger) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: db, log: log}
}

// Do runs fn inside a SQL transaction
func (u *SQLiteUnitOfWork) Do(ctx context.Context, fn func(Stores) error) error {
	return database.WithTransaction(ctx, u.db, func(tx *sql.Tx) error {
		return fn(newSQLiteStores(tx, u.log))
	})
}

// Read returns stores bound to the connection pool
func (u *SQLiteUnitOfWork) Read() Stores {
	return newSQLiteStores(u.db, u.log)
}

func newSQLiteStores(q querier, log zerolog.Logger) Stores {
	return Stores{
		Holdings:     NewHoldingRepository(q, log),
		Cash:         NewCashRepository(q, log),
		Transactions: NewTransactionRepository(q, log),
	}
}

// HoldingRepository stores holdings in the holdings table
type HoldingRepository struct {
	q   querier
	log zerolog.Logger
}

// NewHoldingRepository creates a holding repository
func NewHoldingRepository(q querier, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		q:   q,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

const holdingColumns = "user_id, symbol, quantity, average_cost, updated_at"

// Get returns the holding for (user, symbol), or nil
func (r *HoldingRepository) Get(ctx context.Context, userID int64, symbol string) (*Holding, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = ? AND symbol = ?",
		userID, symbol,
	)

	h, err := scanHolding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding %s: %w", symbol, err)
	}
	return &h, nil
}

// Upsert replaces or creates the holding
func (r *HoldingRepository) Upsert(ctx context.Context, userID int64, symbol string, quantity, averageCost decimal.Decimal) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO holdings (user_id, symbol, quantity, average_cost, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			updated_at = excluded.updated_at
	`, userID, symbol, quantity.String(), averageCost.String(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert holding %s: %w", symbol, err)
	}

	r.log.Debug().
		Int64("user_id", userID).
		Str("symbol", symbol).
		Str("quantity", quantity.String()).
		Msg("Holding upserted")
	return nil
}

// Remove deletes the holding if present
func (r *HoldingRepository) Remove(ctx context.Context, userID int64, symbol string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM holdings WHERE user_id = ? AND symbol = ?", userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to remove holding %s: %w", symbol, err)
	}
	return nil
}

// List returns the user's holdings ordered by symbol
func (r *HoldingRepository) List(ctx context.Context, userID int64) ([]Holding, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = ? ORDER BY symbol",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s rowScanner) (Holding, error) {
	var h Holding
	var updatedAt int64
	if err := s.Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.AverageCost, &updatedAt); err != nil {
		return Holding{}, err
	}
	h.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return h, nil
}

// CashRepository reads and writes users.cash_balance
type CashRepository struct {
	q   querier
	log zerolog.Logger
}

// NewCashRepository creates a cash repository
func NewCashRepository(q querier, log zerolog.Logger) *CashRepository {
	return &CashRepository{
		q:   q,
		log: log.With().Str("repo", "cash").Logger(),
	}
}

// Balance returns the user's cash balance
func (r *CashRepository) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.q.QueryRowContext(ctx, "SELECT cash_balance FROM users WHERE id = ?", userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("user %d does not exist", userID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get cash balance: %w", err)
	}
	return balance, nil
}

// SetBalance overwrites the user's cash balance
func (r *CashRepository) SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	result, err := r.q.ExecContext(ctx,
		"UPDATE users SET cash_balance = ?, updated_at = ? WHERE id = ?",
		balance.String(), time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set cash balance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d does not exist", userID)
	}
	return nil
}

// TransactionRepository stores immutable transaction records
type TransactionRepository struct {
	q   querier
	log zerolog.Logger
}

// NewTransactionRepository creates a transaction repository
func NewTransactionRepository(q querier, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		q:   q,
		log: log.With().Str("repo", "transaction").Logger(),
	}
}

const transactionColumns = `id, user_id, kind, symbol, quantity, price, total_amount, fees,
	notes, transaction_date, created_at`

// Create inserts tx and returns it with the assigned ID
func (r *TransactionRepository) Create(ctx context.Context, tx Transaction) (*Transaction, error) {
	var symbol, quantity, price, notes interface{}
	if tx.Kind.IsTrade() {
		symbol = tx.Symbol
		quantity = tx.Quantity.String()
		price = tx.Price.String()
	}
	if tx.Notes != "" {
		notes = tx.Notes
	}

	result, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions
			(user_id, kind, symbol, quantity, price, total_amount, fees, notes, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.UserID, string(tx.Kind), symbol, quantity, price,
		tx.TotalAmount.String(), tx.Fees.String(), notes,
		tx.TransactionDate.Unix(), tx.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction id: %w", err)
	}

	tx.ID = id
	return &tx, nil
}

// Get returns the user's transaction with the given id, or nil
func (r *TransactionRepository) Get(ctx context.Context, userID, id int64) (*Transaction, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return &tx, nil
}

// Delete removes the user's transaction record
func (r *TransactionRepository) Delete(ctx context.Context, userID, id int64) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	return nil
}

// List returns the user's transactions, newest first
func (r *TransactionRepository) List(ctx context.Context, userID int64) ([]Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY transaction_date DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(s rowScanner) (Transaction, error) {
	var tx Transaction
	var kind string
	var symbol, notes sql.NullString
	var quantity, price decimal.NullDecimal
	var transactionDate, createdAt int64

	err := s.Scan(
		&tx.ID, &tx.UserID, &kind, &symbol, &quantity, &price,
		&tx.TotalAmount, &tx.Fees, &notes, &transactionDate, &createdAt,
	)
	if err != nil {
		return Transaction{}, err
	}

	tx.Kind = Kind(kind)
	tx.Symbol = symbol.String
	tx.Notes = notes.String
	if quantity.Valid {
		tx.Quantity = quantity.Decimal
	}
	if price.Valid {
		tx.Price = price.Decimal
	}
	tx.TransactionDate = time.Unix(transactionDate, 0).UTC()
	tx.CreatedAt = time.Unix(createdAt, 0).UTC()
	return tx, nil
}
