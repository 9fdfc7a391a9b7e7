package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository stores watchlist items in tracker.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a watchlist repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// Create inserts an item. Returns *DuplicateError when the symbol is already watched.
func (r *Repository) Create(ctx context.Context, item Item) (*Item, error) {
	var targetPrice interface{}
	if item.TargetPrice.Valid {
		targetPrice = item.TargetPrice.Decimal.String()
	}
	var notes interface{}
	if item.Notes != "" {
		notes = item.Notes
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO watchlist (user_id, symbol, target_price, notes, added_at)
		VALUES (?, ?, ?, ?, ?)
	`, item.UserID, item.Symbol, targetPrice, notes, item.AddedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, &DuplicateError{Symbol: item.Symbol}
		}
		return nil, fmt.Errorf("failed to insert watchlist item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist item id: %w", err)
	}
	item.ID = id
	return &item, nil
}

// Get returns one item of userID or ErrItemNotFound
func (r *Repository) Get(ctx context.Context, userID, id int64) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, symbol, target_price, notes, added_at
		FROM watchlist WHERE id = ? AND user_id = ?
	`, id, userID)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// List returns the items of userID, newest first
func (r *Repository) List(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, target_price, notes, added_at
		FROM watchlist WHERE user_id = ?
		ORDER BY added_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Delete removes one item of userID. Returns ErrItemNotFound when nothing was deleted.
func (r *Repository) Delete(ctx context.Context, userID, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM watchlist WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s scanner) (*Item, error) {
	var item Item
	var targetPrice decimal.NullDecimal
	var notes sql.NullString
	var addedAt int64

	if err := s.Scan(&item.ID, &item.UserID, &item.Symbol, &targetPrice, &notes, &addedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
	}

	item.TargetPrice = targetPrice
	item.Notes = notes.String
	item.AddedAt = time.Unix(addedAt, 0).UTC()
	return &item, nil
}
