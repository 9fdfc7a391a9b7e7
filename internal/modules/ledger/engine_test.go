package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradefolio/tracker/internal/events"
)

const testUser int64 = 1

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine(t *testing.T, cash string) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	store.AddUser(testUser, d(cash))
	return NewEngine(store, nil, zerolog.Nop()), store
}

func buy(symbol, qty, price, total, fees string) Request {
	return Request{Kind: KindBuy, Symbol: symbol, Quantity: d(qty), Price: d(price), TotalAmount: d(total), Fees: d(fees)}
}

func sell(symbol, qty, price, total, fees string) Request {
	return Request{Kind: KindSell, Symbol: symbol, Quantity: d(qty), Price: d(price), TotalAmount: d(total), Fees: d(fees)}
}

func deposit(amount string) Request {
	return Request{Kind: KindDeposit, TotalAmount: d(amount)}
}

func withdraw(amount string) Request {
	return Request{Kind: KindWithdrawal, TotalAmount: d(amount)}
}

func assertCash(t *testing.T, e *Engine, expected string) {
	t.Helper()
	cash, err := e.CashBalance(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, cash.Equal(d(expected)), "cash = %s, want %s", cash, expected)
}

func assertHolding(t *testing.T, e *Engine, symbol, qty, avg string) {
	t.Helper()
	h, err := e.Holding(context.Background(), testUser, symbol)
	require.NoError(t, err)
	require.NotNil(t, h, "holding %s missing", symbol)
	assert.True(t, h.Quantity.Equal(d(qty)), "quantity = %s, want %s", h.Quantity, qty)
	assert.True(t, h.AverageCost.Equal(d(avg)), "average_cost = %s, want %s", h.AverageCost, avg)
}

func assertNoHolding(t *testing.T, e *Engine, symbol string) {
	t.Helper()
	h, err := e.Holding(context.Background(), testUser, symbol)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestApply_BuyThenInsufficientFunds(t *testing.T) {
	e, _ := newTestEngine(t, "1000")
	ctx := context.Background()

	_, err := e.Apply(ctx, testUser, buy("AAPL", "10", "100", "1000", "0"))
	require.NoError(t, err)
	assertCash(t, e, "0")
	assertHolding(t, e, "AAPL", "10", "100")

	_, err = e.Apply(ctx, testUser, buy("AAPL", "5", "110", "550", "0"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assertCash(t, e, "0")
	assertHolding(t, e, "AAPL", "10", "100")

	txs, err := e.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestApply_SellKeepsAverageCost(t *testing.T) {
	e, _ := newTestEngine(t, "2000")
	ctx := context.Background()

	_, err := e.Apply(ctx, testUser, buy("AAPL", "10", "100", "1000", "0"))
	require.NoError(t, err)
	assertCash(t, e, "1000")

	_, err = e.Apply(ctx, testUser, sell("AAPL", "4", "120", "480", "5"))
	require.NoError(t, err)
	assertCash(t, e, "1475")
	assertHolding(t, e, "AAPL", "6", "100")
}

func TestReverse_BuyRemovesHoldingWhenQuantityCovered(t *testing.T) {
	e, _ := newTestEngine(t, "2000")
	ctx := context.Background()

	bought, err := e.Apply(ctx, testUser, buy("AAPL", "10", "100", "1000", "0"))
	require.NoError(t, err)
	_, err = e.Apply(ctx, testUser, sell("AAPL", "4", "120", "480", "5"))
	require.NoError(t, err)

	require.NoError(t, e.Reverse(ctx, testUser, bought.ID))
	assertCash(t, e, "2475")
	assertNoHolding(t, e, "AAPL")

	_, err = e.Get(ctx, testUser, bought.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApply_BuyWeightedAverageExcludesFees(t *testing.T) {
	e, _ := newTestEngine(t, "10000")
	ctx := context.Background()

	_, err := e.Apply(ctx, testUser, buy("msft", "10", "100", "1000", "10"))
	require.NoError(t, err)
	_, err = e.Apply(ctx, testUser, buy("MSFT", "10", "200", "2000", "10"))
	require.NoError(t, err)

	assertCash(t, e, "6980")
	assertHolding(t, e, "MSFT", "20", "150")
}

func TestApply_NewHoldingUsesRawPrice(t *testing.T) {
	e, _ := newTestEngine(t, "10000")

	// total_amount is caller supplied and not checked against quantity × price
	_, err := e.Apply(context.Background(), testUser, buy("AAPL", "10", "100", "1200", "0"))
	require.NoError(t, err)
	assertHolding(t, e, "AAPL", "10", "100")
	assertCash(t, e, "8800")
}

func TestApply_BuyFeesCountTowardFundsCheck(t *testing.T) {
	e, _ := newTestEngine(t, "1000")

	_, err := e.Apply(context.Background(), testUser, buy("AAPL", "10", "100", "1000", "0.01"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assertCash(t, e, "1000")
	assertNoHolding(t, e, "AAPL")
}

func TestApply_SellToZeroRemovesHolding(t *testing.T) {
	e, _ := newTestEngine(t, "1000")
	ctx := context.Background()

	_, err := e.Apply(ctx, testUser, buy("AAPL", "2.5", "100", "250", "0"))
	require.NoError(t, err)
	_, err = e.Apply(ctx, testUser, sell("AAPL", "2.5", "110", "275", "1"))
	require.NoError(t, err)

	assertNoHolding(t, e, "AAPL")
	assertCash(t, e, "1024")

	holdings, err := e.Holdings(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestApply_SellErrors(t *testing.T) {
	e, _ := newTestEngine(t, "1000")
	ctx := context.Background()

	_, err := e.Apply(ctx, testUser, sell("AAPL", "1", "100", "100", "0"))
	assert.ErrorIs(t, err, ErrNoHolding)
	assert.Equal(t, "No holdings found for AAPL", err.Error())

	_, err = e.Apply(ctx, testUser, buy("AAPL", "3", "100", "300", "0"))
	require.NoError(t, err)

	_, err = e.Apply(ctx, testUser, sell("AAPL", "4", "100", "400", "0"))
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, "Insufficient shares. You have 3, trying to sell 4", err.Error())

	assertCash(t, e, "700")
	assertHolding(t, e, "AAPL", "3", "100")
}

func TestApply_SellFeesAboveProceedsAreNotFloorChecked(t *testing.T) {
	e, _ := newTestEngine(t, "100")
	ctx := context.Background()

	_, err := e.Apply(ctx, testUser, buy("PENNY", "1", "100", "100", "0"))
	require.NoError(t, err)
	_, err = e.Apply(ctx, testUser, sell("PENNY", "1", "1", "1", "5"))
	require.NoError(t, err)

	assertCash(t, e, "-4")
}

func TestApply_DepositAndWithdrawal(t *testing.T) {
	e, _ := newTestEngine(t, "0")
	ctx := context.Background()

	tx, err := e.Apply(ctx, testUser, Request{
		Kind:        KindDeposit,
		Symbol:      "IGNORED",
		Quantity:    d("5"),
		Price:       d("5"),
		TotalAmount: d("500.25"),
	})
	require.NoError(t, err)
	assert.Empty(t, tx.Symbol)
	assert.True(t, tx.Quantity.IsZero())
	assert.True(t, tx.Price.IsZero())
	assertCash(t, e, "500.25")

	_, err = e.Apply(ctx, testUser, withdraw("500.26"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "Insufficient cash balance for withdrawal", err.Error())
	assertCash(t, e, "500.25")

	_, err = e.Apply(ctx, testUser, withdraw("500.25"))
	require.NoError(t, err)
	assertCash(t, e, "0")
}

func TestApply_Validation(t *testing.T) {
	testCases := []struct {
		name string
		req  Request
	}{
		{"unknown kind", Request{Kind: "TRANSFER", TotalAmount: d("1")}},
		{"zero total", Request{Kind: KindDeposit, TotalAmount: d("0")}},
		{"negative total", Request{Kind: KindDeposit, TotalAmount: d("-1")}},
		{"negative fees", Request{Kind: KindDeposit, TotalAmount: d("1"), Fees: d("-0.01")}},
		{"buy without symbol", buy("  ", "1", "1", "1", "0")},
		{"buy zero quantity", buy("AAPL", "0", "1", "1", "0")},
		{"sell negative quantity", sell("AAPL", "-1", "1", "1", "0")},
		{"buy zero price", buy("AAPL", "1", "0", "1", "0")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngine(t, "100")

			_, err := e.Apply(context.Background(), testUser, tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			kind, ok := KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, InvalidRequest, kind)
			assertCash(t, e, "100")
		})
	}
}

func TestApply_NormalizesSymbolAndDates(t *testing.T) {
	e, _ := newTestEngine(t, "1000")
	fixed := time.Date(2024, 3, 1, 10, 30, 15, 999, time.UTC)
	e.now = func() time.Time { return fixed }

	tx, err := e.Apply(context.Background(), testUser, buy(" aapl ", "1", "10", "10", "0"))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", tx.Symbol)
	assert.Equal(t, fixed.Truncate(time.Second), tx.TransactionDate)
	assert.Equal(t, fixed.Truncate(time.Second), tx.CreatedAt)

	past := time.Date(2023, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	req := deposit("5")
	req.TransactionDate = past
	req.Notes = "birthday"
	tx, err = e.Apply(context.Background(), testUser, req)
	require.NoError(t, err)
	assert.True(t, tx.TransactionDate.Equal(past))
	assert.Equal(t, "birthday", tx.Notes)
}

func TestReverse_AllKinds(t *testing.T) {
	t.Run("buy with remaining shares recomputes average", func(t *testing.T) {
		e, _ := newTestEngine(t, "10000")
		ctx := context.Background()

		_, err := e.Apply(ctx, testUser, buy("AAPL", "10", "100", "1000", "0"))
		require.NoError(t, err)
		second, err := e.Apply(ctx, testUser, buy("AAPL", "10", "200", "2000", "5"))
		require.NoError(t, err)
		assertHolding(t, e, "AAPL", "20", "150")

		require.NoError(t, e.Reverse(ctx, testUser, second.ID))
		assertHolding(t, e, "AAPL", "10", "100")
		assertCash(t, e, "9000")
	})

	t.Run("buy when holding already sold is skipped", func(t *testing.T) {
		e, _ := newTestEngine(t, "1000")
		ctx := context.Background()

		bought, err := e.Apply(ctx, testUser, buy("AAPL", "5", "100", "500", "0"))
		require.NoError(t, err)
		_, err = e.Apply(ctx, testUser, sell("AAPL", "5", "100", "500", "0"))
		require.NoError(t, err)

		require.NoError(t, e.Reverse(ctx, testUser, bought.ID))
		assertNoHolding(t, e, "AAPL")
		assertCash(t, e, "1500")
	})

	t.Run("sell with open holding re-derives average from current", func(t *testing.T) {
		e, _ := newTestEngine(t, "1000")
		ctx := context.Background()

		_, err := e.Apply(ctx, testUser, buy("AAPL", "10", "100", "1000", "0"))
		require.NoError(t, err)
		sold, err := e.Apply(ctx, testUser, sell("AAPL", "5", "120", "600", "10"))
		require.NoError(t, err)
		assertCash(t, e, "590")

		require.NoError(t, e.Reverse(ctx, testUser, sold.ID))
		assertCash(t, e, "0")
		// 5 × 100 / 10
		assertHolding(t, e, "AAPL", "10", "50")
	})

	t.Run("sell without holding recreates it at sale price", func(t *testing.T) {
		e, _ := newTestEngine(t, "1000")
		ctx := context.Background()

		_, err := e.Apply(ctx, testUser, buy("AAPL", "5", "100", "500", "0"))
		require.NoError(t, err)
		sold, err := e.Apply(ctx, testUser, sell("AAPL", "5", "120", "600", "0"))
		require.NoError(t, err)
		assertNoHolding(t, e, "AAPL")

		require.NoError(t, e.Reverse(ctx, testUser, sold.ID))
		assertHolding(t, e, "AAPL", "5", "120")
		assertCash(t, e, "500")
	})

	t.Run("deposit without floor check", func(t *testing.T) {
		e, _ := newTestEngine(t, "0")
		ctx := context.Background()

		dep, err := e.Apply(ctx, testUser, deposit("100"))
		require.NoError(t, err)
		_, err = e.Apply(ctx, testUser, withdraw("60"))
		require.NoError(t, err)

		require.NoError(t, e.Reverse(ctx, testUser, dep.ID))
		assertCash(t, e, "-60")
	})

	t.Run("withdrawal refunds cash", func(t *testing.T) {
		e, _ := newTestEngine(t, "100")
		ctx := context.Background()

		w, err := e.Apply(ctx, testUser, withdraw("40"))
		require.NoError(t, err)
		require.NoError(t, e.Reverse(ctx, testUser, w.ID))
		assertCash(t, e, "100")
	})
}

func TestReverse_IsOneShot(t *testing.T) {
	e, _ := newTestEngine(t, "0")
	ctx := context.Background()

	dep, err := e.Apply(ctx, testUser, deposit("10"))
	require.NoError(t, err)

	require.NoError(t, e.Reverse(ctx, testUser, dep.ID))
	err = e.Reverse(ctx, testUser, dep.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Transaction not found", err.Error())
	assertCash(t, e, "0")
}

func TestReverse_OtherUsersTransactionIsNotFound(t *testing.T) {
	e, store := newTestEngine(t, "0")
	store.AddUser(2, decimal.Zero)
	ctx := context.Background()

	dep, err := e.Apply(ctx, testUser, deposit("10"))
	require.NoError(t, err)

	assert.ErrorIs(t, e.Reverse(ctx, 2, dep.ID), ErrNotFound)
	_, err = e.Get(ctx, 2, dep.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assertCash(t, e, "10")
}

func TestApply_IDsAreNeverReused(t *testing.T) {
	e, _ := newTestEngine(t, "0")
	ctx := context.Background()

	first, err := e.Apply(ctx, testUser, deposit("1"))
	require.NoError(t, err)
	require.NoError(t, e.Reverse(ctx, testUser, first.ID))

	_, err = e.Apply(ctx, testUser, withdraw("5"))
	require.Error(t, err)

	second, err := e.Apply(ctx, testUser, deposit("1"))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestList_NewestFirst(t *testing.T) {
	e, _ := newTestEngine(t, "0")
	ctx := context.Background()

	for i, day := range []int{3, 1, 2} {
		req := deposit("1")
		req.TransactionDate = time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		req.Notes = string(rune('a' + i))
		_, err := e.Apply(ctx, testUser, req)
		require.NoError(t, err)
	}

	txs, err := e.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, 3, txs[0].TransactionDate.Day())
	assert.Equal(t, 2, txs[1].TransactionDate.Day())
	assert.Equal(t, 1, txs[2].TransactionDate.Day())
}

func TestApply_UnknownUser(t *testing.T) {
	e, _ := newTestEngine(t, "0")

	_, err := e.Apply(context.Background(), 99, deposit("1"))
	require.Error(t, err)
	_, isLedgerErr := KindOf(err)
	assert.False(t, isLedgerErr)
}

func TestApply_ConcurrentOperationsForOneUserAreSerialized(t *testing.T) {
	e, _ := newTestEngine(t, "0")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Apply(ctx, testUser, deposit("2"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assertCash(t, e, "100")
}

// failingHoldings fails every upsert to exercise rollback
type failingHoldings struct {
	HoldingStore
}

func (failingHoldings) Upsert(context.Context, int64, string, decimal.Decimal, decimal.Decimal) error {
	return errors.New("disk full")
}

type failingUoW struct {
	*MemoryStore
}

func (f failingUoW) Do(ctx context.Context, fn func(Stores) error) error {
	return f.MemoryStore.Do(ctx, func(s Stores) error {
		s.Holdings = failingHoldings{s.Holdings}
		return fn(s)
	})
}

func TestApply_StoreFailureLeavesNoPartialEffect(t *testing.T) {
	store := NewMemoryStore()
	store.AddUser(testUser, d("1000"))
	e := NewEngine(failingUoW{store}, nil, zerolog.Nop())

	_, err := e.Apply(context.Background(), testUser, buy("AAPL", "1", "10", "10", "0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	cash, err := store.Read().Cash.Balance(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, cash.Equal(d("1000")))
	txs, err := store.Read().Transactions.List(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestEngine_EmitsEventsAfterCommit(t *testing.T) {
	store := NewMemoryStore()
	store.AddUser(testUser, d("100"))
	bus := events.NewBus(zerolog.Nop())
	e := NewEngine(store, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())

	var got []*events.Event
	bus.Subscribe(events.TransactionApplied, func(ev *events.Event) { got = append(got, ev) })
	bus.Subscribe(events.TransactionReversed, func(ev *events.Event) { got = append(got, ev) })

	tx, err := e.Apply(context.Background(), testUser, buy("AAPL", "1", "40", "40", "1"))
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), testUser, buy("AAPL", "100", "40", "4000", "0"))
	require.Error(t, err)
	require.NoError(t, e.Reverse(context.Background(), testUser, tx.ID))

	require.Len(t, got, 2)
	assert.Equal(t, events.TransactionApplied, got[0].Type)
	assert.Equal(t, "59", got[0].Data["cash_balance"])
	assert.Equal(t, "AAPL", got[0].Data["symbol"])
	userID, ok := events.Int64Field(got[0].Data, "user_id")
	assert.True(t, ok)
	assert.Equal(t, testUser, userID)

	assert.Equal(t, events.TransactionReversed, got[1].Type)
	assert.Equal(t, "100", got[1].Data["cash_balance"])
}
