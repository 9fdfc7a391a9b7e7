package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// HoldingStore is a key-value store of holdings keyed by (user, symbol).
// It performs no validation; the engine guarantees quantity > 0.
type HoldingStore interface {
	// Get returns nil when no holding exists
	Get(ctx context.Context, userID int64, symbol string) (*Holding, error)
	// Upsert replaces or creates the holding
	Upsert(ctx context.Context, userID int64, symbol string, quantity, averageCost decimal.Decimal) error
	// Remove deletes the holding; a no-op when absent
	Remove(ctx context.Context, userID int64, symbol string) error
	// List returns all holdings of a user ordered by symbol
	List(ctx context.Context, userID int64) ([]Holding, error)
}

// CashAccount reads and writes a user's cash balance
type CashAccount interface {
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error
}

// TransactionStore persists transaction records
type TransactionStore interface {
	// Create stores tx and returns it with its assigned ID
	Create(ctx context.Context, tx Transaction) (*Transaction, error)
	// Get returns nil when the id does not exist for the user
	Get(ctx context.Context, userID, id int64) (*Transaction, error)
	Delete(ctx context.Context, userID, id int64) error
	// List returns the user's transactions, newest transaction_date first
	List(ctx context.Context, userID int64) ([]Transaction, error)
}

// Stores groups the collaborators of one ledger operation
type Stores struct {
	Holdings     HoldingStore
	Cash         CashAccount
	Transactions TransactionStore
}

// UnitOfWork runs fn with stores whose writes commit together.
// When fn returns an error nothing it wrote is kept.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Stores) error) error
	// Read returns stores for queries outside a unit of work
	Read() Stores
}
