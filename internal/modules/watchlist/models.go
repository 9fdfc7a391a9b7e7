// Package watchlist tracks symbols a user wants to follow.
package watchlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a watched symbol
type Item struct {
	ID          int64
	UserID      int64
	Symbol      string
	TargetPrice decimal.NullDecimal
	Notes       string
	AddedAt     time.Time
}

// AddInput holds the fields for a new watchlist item
type AddInput struct {
	Symbol      string
	TargetPrice decimal.NullDecimal
	Notes       string
}

// ErrItemNotFound is returned when the item does not exist for the user
var ErrItemNotFound = errors.New("Watchlist item not found")

// DuplicateError is returned when the symbol is already watched
type DuplicateError struct {
	Symbol string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s is already in your watchlist", e.Symbol)
}
