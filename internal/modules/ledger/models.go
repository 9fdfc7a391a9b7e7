// Package ledger applies and reverses cash and stock transactions, keeping each
// user's cash balance and weighted-average holdings consistent.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the type of a ledger transaction
type Kind string

const (
	KindBuy        Kind = "BUY"
	KindSell       Kind = "SELL"
	KindDeposit    Kind = "DEPOSIT"
	KindWithdrawal Kind = "WITHDRAWAL"
)

// Valid reports whether k is one of the four known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindBuy, KindSell, KindDeposit, KindWithdrawal:
		return true
	}
	return false
}

// IsTrade reports whether the kind moves shares (BUY or SELL)
func (k Kind) IsTrade() bool {
	return k == KindBuy || k == KindSell
}

// Transaction is a committed ledger event. It is never modified after creation.
// Symbol, Quantity and Price are only set for BUY and SELL.
type Transaction struct {
	ID              int64
	UserID          int64
	Kind            Kind
	Symbol          string
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	TotalAmount     decimal.Decimal
	Fees            decimal.Decimal
	Notes           string
	TransactionDate time.Time
	CreatedAt       time.Time
}

// Holding is an open position in one symbol. Quantity is always positive.
type Holding struct {
	UserID      int64
	Symbol      string
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	UpdatedAt   time.Time
}

// CostBasis returns quantity × average cost
func (h Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageCost)
}

// Request is the caller-supplied input to Apply.
// A zero TransactionDate means "now".
type Request struct {
	Kind            Kind
	Symbol          string
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	TotalAmount     decimal.Decimal
	Fees            decimal.Decimal
	Notes           string
	TransactionDate time.Time
}

// NormalizeSymbol trims and upper-cases a ticker symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
