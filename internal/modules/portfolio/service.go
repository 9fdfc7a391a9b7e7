// Package portfolio values a user's holdings at current market prices.
package portfolio

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tradefolio/tracker/internal/modules/ledger"
)

const (
	defaultQuoteTimeout = 5 * time.Second
	maxConcurrentQuotes = 8
)

var hundred = decimal.NewFromInt(100)

// PriceProvider supplies best-effort current prices
type PriceProvider interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)
}

// LedgerReader is the read side of the ledger used for valuation
type LedgerReader interface {
	Holdings(ctx context.Context, userID int64) ([]ledger.Holding, error)
	CashBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// HoldingValue is a holding valued at its current price
type HoldingValue struct {
	Symbol             string          `json:"symbol"`
	Quantity           decimal.Decimal `json:"quantity"`
	AverageCost        decimal.Decimal `json:"average_cost"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	MarketValue        decimal.Decimal `json:"market_value"`
	GainLoss           decimal.Decimal `json:"gain_loss"`
	GainLossPercentage decimal.Decimal `json:"gain_loss_percentage"`
	PriceAvailable     bool            `json:"price_available"`
}

// Portfolio is the full valuation report
type Portfolio struct {
	CashBalance             decimal.Decimal `json:"cash_balance"`
	Holdings                []HoldingValue  `json:"holdings"`
	TotalMarketValue        decimal.Decimal `json:"total_market_value"`
	TotalGainLoss           decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercentage decimal.Decimal `json:"total_gain_loss_percentage"`
	NumberOfHoldings        int             `json:"number_of_holdings"`
}

// Performance is the summary report
type Performance struct {
	TotalValue              decimal.Decimal `json:"total_value"`
	CashBalance             decimal.Decimal `json:"cash_balance"`
	HoldingsValue           decimal.Decimal `json:"holdings_value"`
	TotalGainLoss           decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercentage decimal.Decimal `json:"total_gain_loss_percentage"`
	NumberOfHoldings        int             `json:"number_of_holdings"`
}

// Service builds valuation reports. It never writes to the ledger.
type Service struct {
	ledger       LedgerReader
	prices       PriceProvider
	quoteTimeout time.Duration
	log          zerolog.Logger
}

// NewService creates a new portfolio service. prices may be nil, in which
// case every holding is valued at its average cost.
func NewService(ledger LedgerReader, prices PriceProvider, log zerolog.Logger) *Service {
	return &Service{
		ledger:       ledger,
		prices:       prices,
		quoteTimeout: defaultQuoteTimeout,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// Portfolio values every holding of userID
func (s *Service) Portfolio(ctx context.Context, userID int64) (*Portfolio, error) {
	cash, holdings, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	values := s.value(ctx, holdings)

	totalValue, totalCost := decimal.Zero, decimal.Zero
	for _, v := range values {
		totalValue = totalValue.Add(v.MarketValue)
		totalCost = totalCost.Add(v.Quantity.Mul(v.AverageCost))
	}
	totalGain := totalValue.Sub(totalCost)

	return &Portfolio{
		CashBalance:             cash,
		Holdings:                values,
		TotalMarketValue:        totalValue,
		TotalGainLoss:           totalGain,
		TotalGainLossPercentage: percentage(totalGain, totalCost),
		NumberOfHoldings:        len(values),
	}, nil
}

// Performance summarizes total value and gains of userID
func (s *Service) Performance(ctx context.Context, userID int64) (*Performance, error) {
	p, err := s.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Performance{
		TotalValue:              p.CashBalance.Add(p.TotalMarketValue),
		CashBalance:             p.CashBalance,
		HoldingsValue:           p.TotalMarketValue,
		TotalGainLoss:           p.TotalGainLoss,
		TotalGainLossPercentage: p.TotalGainLossPercentage,
		NumberOfHoldings:        p.NumberOfHoldings,
	}, nil
}

func (s *Service) load(ctx context.Context, userID int64) (decimal.Decimal, []ledger.Holding, error) {
	cash, err := s.ledger.CashBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	holdings, err := s.ledger.Holdings(ctx, userID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return cash, holdings, nil
}

// value prices holdings concurrently. Missing or slow quotes fall back to the average cost.
func (s *Service) value(ctx context.Context, holdings []ledger.Holding) []HoldingValue {
	values := make([]HoldingValue, len(holdings))

	quoteCtx, cancel := context.WithTimeout(ctx, s.quoteTimeout)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentQuotes)
	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			price, ok := s.price(quoteCtx, h.Symbol)
			if !ok {
				price = h.AverageCost
			}
			values[i] = valueOf(h, price, ok)
			return nil
		})
	}
	_ = g.Wait()

	return values
}

func (s *Service) price(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if s.prices == nil {
		return decimal.Zero, false
	}

	type result struct {
		price decimal.Decimal
		ok    bool
	}
	done := make(chan result, 1)
	go func() {
		p, ok := s.prices.CurrentPrice(ctx, symbol)
		done <- result{p, ok}
	}()

	select {
	case r := <-done:
		if !r.ok || !r.price.IsPositive() {
			return decimal.Zero, false
		}
		return r.price, true
	case <-ctx.Done():
		s.log.Warn().Str("symbol", symbol).Msg("Quote timed out, valuing at average cost")
		return decimal.Zero, false
	}
}

func valueOf(h ledger.Holding, price decimal.Decimal, priced bool) HoldingValue {
	cost := h.Quantity.Mul(h.AverageCost)
	marketValue := h.Quantity.Mul(price)
	gain := marketValue.Sub(cost)

	return HoldingValue{
		Symbol:             h.Symbol,
		Quantity:           h.Quantity,
		AverageCost:        h.AverageCost,
		CurrentPrice:       price,
		MarketValue:        marketValue,
		GainLoss:           gain,
		GainLossPercentage: percentage(gain, cost),
		PriceAvailable:     priced,
	}
}

// percentage returns gain / cost × 100, or 0 when cost is not positive
func percentage(gain, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return gain.Div(cost).Mul(hundred)
}
