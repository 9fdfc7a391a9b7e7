package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tradefolio/tracker/internal/clients/marketdata"
)

const maxConcurrentFetches = 4

// QuoteSource fetches quotes for broadcast
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (*marketdata.Quote, error)
}

// PriceBroadcastJob fetches quotes for every subscribed symbol and pushes them to subscribers
type PriceBroadcastJob struct {
	hub     *Hub
	quotes  QuoteSource
	timeout time.Duration
	log     zerolog.Logger
}

// NewPriceBroadcastJob creates the broadcast job
func NewPriceBroadcastJob(hub *Hub, quotes QuoteSource, log zerolog.Logger) *PriceBroadcastJob {
	return &PriceBroadcastJob{
		hub:     hub,
		quotes:  quotes,
		timeout: 20 * time.Second,
		log:     log.With().Str("job", "price_broadcast").Logger(),
	}
}

// Name returns the job name
func (j *PriceBroadcastJob) Name() string {
	return "price_broadcast"
}

// Run broadcasts one round of prices. Failed symbols are skipped.
func (j *PriceBroadcastJob) Run() error {
	symbols := j.hub.Symbols()
	if len(symbols) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentFetches)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			quote, err := j.quotes.Quote(ctx, symbol)
			if err != nil {
				j.log.Debug().Err(err).Str("symbol", symbol).Msg("Skipping price update")
				return nil
			}
			j.hub.BroadcastPrice(symbol, quote)
			return nil
		})
	}
	_ = g.Wait()

	j.log.Debug().Int("symbols", len(symbols)).Msg("Price broadcast completed")
	return nil
}
