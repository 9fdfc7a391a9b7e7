package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuyInto(t *testing.T) {
	fresh := buyInto(nil, d("10"), d("100"), d("1000"))
	assert.False(t, fresh.remove)
	assert.True(t, fresh.pos.quantity.Equal(d("10")))
	assert.True(t, fresh.pos.averageCost.Equal(d("100")))

	added := buyInto(&position{quantity: d("10"), averageCost: d("100")}, d("5"), d("130"), d("650"))
	assert.True(t, added.pos.quantity.Equal(d("15")))
	assert.True(t, added.pos.averageCost.Equal(d("110")))
}

func TestSellFrom(t *testing.T) {
	partial := sellFrom(position{quantity: d("10"), averageCost: d("100")}, d("4"))
	assert.False(t, partial.remove)
	assert.True(t, partial.pos.quantity.Equal(d("6")))
	assert.True(t, partial.pos.averageCost.Equal(d("100")))

	all := sellFrom(position{quantity: d("10"), averageCost: d("100")}, d("10.000"))
	assert.True(t, all.remove)
}

func TestUnwindBuy(t *testing.T) {
	tx := Transaction{Kind: KindBuy, Quantity: d("10"), Price: d("100"), TotalAmount: d("1000")}

	assert.True(t, unwindBuy(nil, tx).skip)
	assert.True(t, unwindBuy(&position{quantity: d("10"), averageCost: d("100")}, tx).remove)
	assert.True(t, unwindBuy(&position{quantity: d("6"), averageCost: d("100")}, tx).remove)

	partial := unwindBuy(&position{quantity: d("15"), averageCost: d("110")}, tx)
	assert.False(t, partial.remove)
	assert.True(t, partial.pos.quantity.Equal(d("5")))
	assert.True(t, partial.pos.averageCost.Equal(d("130")))
}

func TestUnwindSell(t *testing.T) {
	tx := Transaction{Kind: KindSell, Quantity: d("4"), Price: d("120"), TotalAmount: d("480")}

	recreated := unwindSell(nil, tx)
	assert.True(t, recreated.pos.quantity.Equal(d("4")))
	assert.True(t, recreated.pos.averageCost.Equal(d("120")))

	merged := unwindSell(&position{quantity: d("6"), averageCost: d("100")}, tx)
	assert.True(t, merged.pos.quantity.Equal(d("10")))
	assert.True(t, merged.pos.averageCost.Equal(d("60")))
}

func TestKind(t *testing.T) {
	assert.True(t, KindBuy.Valid())
	assert.True(t, KindWithdrawal.Valid())
	assert.False(t, Kind("buy").Valid())
	assert.True(t, KindSell.IsTrade())
	assert.False(t, KindDeposit.IsTrade())
}

func TestErrorMatching(t *testing.T) {
	err := newError(NoHolding, "No holdings found for %s", "AAPL")

	assert.ErrorIs(t, err, ErrNoHolding)
	assert.NotErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, "No holdings found for AAPL", err.Error())
	assert.Equal(t, "No holdings found for AAPL", MessageOf(err))
	assert.Equal(t, "", MessageOf(assert.AnError))

	_, ok := KindOf(assert.AnError)
	assert.False(t, ok)
}
