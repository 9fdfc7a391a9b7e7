package ledger

import "github.com/shopspring/decimal"

// position is the quantity and average cost of a holding
type position struct {
	quantity    decimal.Decimal
	averageCost decimal.Decimal
}

// holdingEffect is the outcome of an accounting step on one holding
type holdingEffect struct {
	skip   bool // leave the holding untouched
	remove bool // delete the holding
	pos    position
}

func positionOf(h *Holding) *position {
	if h == nil {
		return nil
	}
	return &position{quantity: h.Quantity, averageCost: h.AverageCost}
}

// buyInto adds a purchase to a holding using weighted-average cost.
// Fees are not part of the cost basis. A new holding starts at the raw price.
func buyInto(current *position, quantity, price, totalAmount decimal.Decimal) holdingEffect {
	if current == nil {
		return holdingEffect{pos: position{quantity: quantity, averageCost: price}}
	}

	costBasis := current.quantity.Mul(current.averageCost).Add(totalAmount)
	newQuantity := current.quantity.Add(quantity)
	return holdingEffect{pos: position{
		quantity:    newQuantity,
		averageCost: costBasis.Div(newQuantity),
	}}
}

// sellFrom removes sold shares. The average cost is unchanged.
// The caller has already checked current.quantity >= quantity.
func sellFrom(current position, quantity decimal.Decimal) holdingEffect {
	remaining := current.quantity.Sub(quantity)
	if remaining.IsZero() {
		return holdingEffect{remove: true}
	}
	return holdingEffect{pos: position{quantity: remaining, averageCost: current.averageCost}}
}

// unwindBuy takes a reversed BUY out of the current holding.
// Holdings already emptied by later sells are left alone.
func unwindBuy(current *position, tx Transaction) holdingEffect {
	if current == nil {
		return holdingEffect{skip: true}
	}
	if current.quantity.LessThanOrEqual(tx.Quantity) {
		return holdingEffect{remove: true}
	}

	costBasis := current.quantity.Mul(current.averageCost).Sub(tx.TotalAmount)
	newQuantity := current.quantity.Sub(tx.Quantity)
	averageCost := decimal.Zero
	if !newQuantity.IsZero() {
		averageCost = costBasis.Div(newQuantity)
	}
	return holdingEffect{pos: position{quantity: newQuantity, averageCost: averageCost}}
}

// unwindSell puts reversed SELL shares back into the holding.
// The average is re-derived from the current average, not the pre-sale one,
// so it is only an exact inverse when nothing else touched the symbol since the sale.
func unwindSell(current *position, tx Transaction) holdingEffect {
	if current == nil {
		return holdingEffect{pos: position{quantity: tx.Quantity, averageCost: tx.Price}}
	}

	costBasis := current.quantity.Mul(current.averageCost)
	newQuantity := current.quantity.Add(tx.Quantity)
	return holdingEffect{pos: position{
		quantity:    newQuantity,
		averageCost: costBasis.Div(newQuantity),
	}}
}
