package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradefolio/tracker/internal/events"
)

// Service is the ledger API consumed by handlers and other modules
type Service interface {
	Apply(ctx context.Context, userID int64, req Request) (*Transaction, error)
	Reverse(ctx context.Context, userID, transactionID int64) error
	Get(ctx context.Context, userID, transactionID int64) (*Transaction, error)
	List(ctx context.Context, userID int64) ([]Transaction, error)
	Holdings(ctx context.Context, userID int64) ([]Holding, error)
	CashBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// Compile-time check that Engine implements Service
var _ Service = (*Engine)(nil)

// Engine applies and reverses transactions against a UnitOfWork.
// Operations for one user are serialized; each commits atomically.
type Engine struct {
	uow    UnitOfWork
	locks  *userLocks
	events *events.Manager
	log    zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a ledger engine. eventManager may be nil.
func NewEngine(uow UnitOfWork, eventManager *events.Manager, log zerolog.Logger) *Engine {
	return &Engine{
		uow:    uow,
		locks:  newUserLocks(),
		events: eventManager,
		log:    log.With().Str("service", "ledger").Logger(),
		now:    time.Now,
	}
}

// validate checks the request shape and returns the normalized request
func validate(req Request) (Request, error) {
	if !req.Kind.Valid() {
		return req, newError(InvalidRequest, "transaction_type must be one of BUY, SELL, DEPOSIT, WITHDRAWAL")
	}
	if !req.TotalAmount.IsPositive() {
		return req, newError(InvalidRequest, "total_amount must be greater than 0")
	}
	if req.Fees.IsNegative() {
		return req, newError(InvalidRequest, "fees must not be negative")
	}

	if !req.Kind.IsTrade() {
		req.Symbol = ""
		req.Quantity = decimal.Zero
		req.Price = decimal.Zero
		return req, nil
	}

	req.Symbol = NormalizeSymbol(req.Symbol)
	if req.Symbol == "" {
		return req, newError(InvalidRequest, "Symbol is required for BUY/SELL transactions")
	}
	if !req.Quantity.IsPositive() {
		return req, newError(InvalidRequest, "Quantity must be greater than 0 for BUY/SELL transactions")
	}
	if !req.Price.IsPositive() {
		return req, newError(InvalidRequest, "Price must be greater than 0 for BUY/SELL transactions")
	}
	return req, nil
}

// Apply validates req, updates cash and holdings and records the transaction
func (e *Engine) Apply(ctx context.Context, userID int64, req Request) (*Transaction, error) {
	req, err := validate(req)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC().Truncate(time.Second)
	txDate := now
	if !req.TransactionDate.IsZero() {
		txDate = req.TransactionDate.UTC().Truncate(time.Second)
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	var created *Transaction
	var cashAfter decimal.Decimal
	err = e.uow.Do(ctx, func(s Stores) error {
		cash, err := s.Cash.Balance(ctx, userID)
		if err != nil {
			return err
		}

		switch req.Kind {
		case KindBuy:
			cash, err = e.applyBuy(ctx, s, userID, req, cash)
		case KindSell:
			cash, err = e.applySell(ctx, s, userID, req, cash)
		case KindDeposit:
			cash = cash.Add(req.TotalAmount)
		case KindWithdrawal:
			if cash.LessThan(req.TotalAmount) {
				return newError(InsufficientFunds, "Insufficient cash balance for withdrawal")
			}
			cash = cash.Sub(req.TotalAmount)
		}
		if err != nil {
			return err
		}

		if err := s.Cash.SetBalance(ctx, userID, cash); err != nil {
			return err
		}

		created, err = s.Transactions.Create(ctx, Transaction{
			UserID:          userID,
			Kind:            req.Kind,
			Symbol:          req.Symbol,
			Quantity:        req.Quantity,
			Price:           req.Price,
			TotalAmount:     req.TotalAmount,
			Fees:            req.Fees,
			Notes:           req.Notes,
			TransactionDate: txDate,
			CreatedAt:       now,
		})
		cashAfter = cash
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int64("user_id", userID).
		Int64("transaction_id", created.ID).
		Str("kind", string(created.Kind)).
		Str("symbol", created.Symbol).
		Str("total_amount", created.TotalAmount.String()).
		Msg("Transaction applied")

	if e.events != nil {
		e.events.EmitTyped("ledger", &events.TransactionAppliedData{
			UserID:        userID,
			TransactionID: created.ID,
			Kind:          string(created.Kind),
			Symbol:        created.Symbol,
			CashBalance:   cashAfter.String(),
		})
	}

	return created, nil
}

func (e *Engine) applyBuy(ctx context.Context, s Stores, userID int64, req Request, cash decimal.Decimal) (decimal.Decimal, error) {
	totalCost := req.TotalAmount.Add(req.Fees)
	if cash.LessThan(totalCost) {
		return cash, newError(InsufficientFunds, "Insufficient cash balance")
	}

	holding, err := s.Holdings.Get(ctx, userID, req.Symbol)
	if err != nil {
		return cash, err
	}

	effect := buyInto(positionOf(holding), req.Quantity, req.Price, req.TotalAmount)
	if err := applyEffect(ctx, s.Holdings, userID, req.Symbol, effect); err != nil {
		return cash, err
	}
	return cash.Sub(totalCost), nil
}

func (e *Engine) applySell(ctx context.Context, s Stores, userID int64, req Request, cash decimal.Decimal) (decimal.Decimal, error) {
	holding, err := s.Holdings.Get(ctx, userID, req.Symbol)
	if err != nil {
		return cash, err
	}
	if holding == nil {
		return cash, newError(NoHolding, "No holdings found for %s", req.Symbol)
	}
	if holding.Quantity.LessThan(req.Quantity) {
		return cash, newError(InsufficientShares,
			"Insufficient shares. You have %s, trying to sell %s", holding.Quantity, req.Quantity)
	}

	effect := sellFrom(*positionOf(holding), req.Quantity)
	if err := applyEffect(ctx, s.Holdings, userID, req.Symbol, effect); err != nil {
		return cash, err
	}
	return cash.Add(req.TotalAmount.Sub(req.Fees)), nil
}

// Reverse undoes a transaction against the current state and deletes its record
func (e *Engine) Reverse(ctx context.Context, userID, transactionID int64) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	var reversed *Transaction
	var cashAfter decimal.Decimal
	err := e.uow.Do(ctx, func(s Stores) error {
		tx, err := s.Transactions.Get(ctx, userID, transactionID)
		if err != nil {
			return err
		}
		if tx == nil {
			return newError(NotFound, "Transaction not found")
		}

		cash, err := s.Cash.Balance(ctx, userID)
		if err != nil {
			return err
		}

		switch tx.Kind {
		case KindBuy:
			cash = cash.Add(tx.TotalAmount.Add(tx.Fees))
			err = e.unwindHolding(ctx, s, userID, *tx, unwindBuy)
		case KindSell:
			cash = cash.Sub(tx.TotalAmount.Sub(tx.Fees))
			err = e.unwindHolding(ctx, s, userID, *tx, unwindSell)
		case KindDeposit:
			cash = cash.Sub(tx.TotalAmount)
		case KindWithdrawal:
			cash = cash.Add(tx.TotalAmount)
		default:
			return fmt.Errorf("transaction %d has unknown kind %q", tx.ID, tx.Kind)
		}
		if err != nil {
			return err
		}

		if err := s.Cash.SetBalance(ctx, userID, cash); err != nil {
			return err
		}
		if err := s.Transactions.Delete(ctx, userID, tx.ID); err != nil {
			return err
		}

		reversed = tx
		cashAfter = cash
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info().
		Int64("user_id", userID).
		Int64("transaction_id", reversed.ID).
		Str("kind", string(reversed.Kind)).
		Str("symbol", reversed.Symbol).
		Msg("Transaction reversed")

	if e.events != nil {
		e.events.EmitTyped("ledger", &events.TransactionReversedData{
			UserID:        userID,
			TransactionID: reversed.ID,
			Kind:          string(reversed.Kind),
			Symbol:        reversed.Symbol,
			CashBalance:   cashAfter.String(),
		})
	}

	return nil
}

func (e *Engine) unwindHolding(
	ctx context.Context,
	s Stores,
	userID int64,
	tx Transaction,
	unwind func(*position, Transaction) holdingEffect,
) error {
	holding, err := s.Holdings.Get(ctx, userID, tx.Symbol)
	if err != nil {
		return err
	}
	return applyEffect(ctx, s.Holdings, userID, tx.Symbol, unwind(positionOf(holding), tx))
}

func applyEffect(ctx context.Context, holdings HoldingStore, userID int64, symbol string, effect holdingEffect) error {
	switch {
	case effect.skip:
		return nil
	case effect.remove:
		return holdings.Remove(ctx, userID, symbol)
	default:
		return holdings.Upsert(ctx, userID, symbol, effect.pos.quantity, effect.pos.averageCost)
	}
}

// Get returns one of the user's transactions, or a NotFound error
func (e *Engine) Get(ctx context.Context, userID, transactionID int64) (*Transaction, error) {
	tx, err := e.uow.Read().Transactions.Get(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, newError(NotFound, "Transaction not found")
	}
	return tx, nil
}

// List returns the user's transactions, newest first
func (e *Engine) List(ctx context.Context, userID int64) ([]Transaction, error) {
	return e.uow.Read().Transactions.List(ctx, userID)
}

// Holdings returns the user's open holdings
func (e *Engine) Holdings(ctx context.Context, userID int64) ([]Holding, error) {
	return e.uow.Read().Holdings.List(ctx, userID)
}

// Holding returns the user's holding in symbol, or nil
func (e *Engine) Holding(ctx context.Context, userID int64, symbol string) (*Holding, error) {
	return e.uow.Read().Holdings.Get(ctx, userID, NormalizeSymbol(symbol))
}

// CashBalance returns the user's cash balance
func (e *Engine) CashBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return e.uow.Read().Cash.Balance(ctx, userID)
}
