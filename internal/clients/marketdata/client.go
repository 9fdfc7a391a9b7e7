// Package marketdata provides a cache-first market data client backed by
// Yahoo Finance, with Alpha Vantage as a quote fallback.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tradefolio/tracker/internal/clientdata"
)

const (
	defaultYahooBaseURL        = "https://query1.finance.yahoo.com"
	defaultAlphaVantageBaseURL = "https://www.alphavantage.co"
	userAgent                  = "Mozilla/5.0 (compatible; tracker/1.0)"
)

// ErrNotFound is returned when no provider has data for a symbol
var ErrNotFound = errors.New("market data not found")

// Config configures the market data client
type Config struct {
	AlphaVantageAPIKey string
	QuoteTTL           time.Duration
	Timeout            time.Duration
}

// Client fetches market data from upstream providers.
// When a cache repository is configured, lookups are cache-first and fall
// back to stale cache entries when every provider fails.
type Client struct {
	yahooBaseURL        string
	alphaVantageBaseURL string
	alphaVantageKey     string
	quoteTTL            time.Duration
	httpClient          *http.Client
	cacheRepo           *clientdata.Repository
	log                 zerolog.Logger
	now                 func() time.Time
}

// NewClient creates a new market data client. cacheRepo is optional.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = clientdata.TTLQuote
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		yahooBaseURL:        defaultYahooBaseURL,
		alphaVantageBaseURL: defaultAlphaVantageBaseURL,
		alphaVantageKey:     cfg.AlphaVantageAPIKey,
		quoteTTL:            cfg.QuoteTTL,
		httpClient:          &http.Client{Timeout: cfg.Timeout},
		cacheRepo:           cacheRepo,
		log:                 log.With().Str("client", "marketdata").Logger(),
		now:                 time.Now,
	}
}

// Search finds equities and ETFs matching query
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	key := strings.ToLower(strings.TrimSpace(query))

	var cached []SearchResult
	if c.fromCache(clientdata.TableSearch, key, &cached, true) {
		return cached, nil
	}

	results, err := c.yahooSearch(ctx, query)
	if err != nil {
		if c.fromCache(clientdata.TableSearch, key, &cached, false) {
			c.log.Warn().Err(err).Str("query", query).Msg("Search failed, using stale cached data")
			return cached, nil
		}
		return nil, err
	}

	c.toCache(clientdata.TableSearch, key, results, clientdata.TTLSearch)
	return results, nil
}

// Quote returns the latest quote for symbol.
// Yahoo is tried first, then Alpha Vantage when an API key is configured.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNotFound
	}

	var cached Quote
	if c.fromCache(clientdata.TableQuotes, symbol, &cached, true) {
		return &cached, nil
	}

	quote, err := c.yahooQuote(ctx, symbol)
	if err != nil && c.alphaVantageKey != "" {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("Yahoo quote failed, trying Alpha Vantage")
		quote, err = c.alphaVantageQuote(ctx, symbol)
	}
	if err != nil {
		if c.fromCache(clientdata.TableQuotes, symbol, &cached, false) {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote providers failed, using stale cached data")
			return &cached, nil
		}
		return nil, err
	}

	c.toCache(clientdata.TableQuotes, symbol, quote, c.quoteTTL)
	return quote, nil
}

// History returns daily bars for period (1D, 1W, 1M, 3M, 6M, 1Y, 5Y) with analytics
func (c *Client) History(ctx context.Context, symbol, period string) (*History, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("invalid period %q", period)
	}
	key := symbol + ":" + period

	var cached History
	if c.fromCache(clientdata.TableHistory, key, &cached, true) {
		return &cached, nil
	}

	history, err := c.yahooHistory(ctx, symbol, period)
	if err != nil {
		if c.fromCache(clientdata.TableHistory, key, &cached, false) {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("History fetch failed, using stale cached data")
			return &cached, nil
		}
		return nil, err
	}

	c.toCache(clientdata.TableHistory, key, history, clientdata.TTLHistory)
	return history, nil
}

// Company returns the company profile and fundamentals for symbol
func (c *Client) Company(ctx context.Context, symbol string) (*Company, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var cached Company
	if c.fromCache(clientdata.TableCompany, symbol, &cached, true) {
		return &cached, nil
	}

	company, err := c.yahooCompany(ctx, symbol)
	if err != nil {
		if c.fromCache(clientdata.TableCompany, symbol, &cached, false) {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Company fetch failed, using stale cached data")
			return &cached, nil
		}
		return nil, err
	}

	c.toCache(clientdata.TableCompany, symbol, company, clientdata.TTLCompany)
	return company, nil
}

// CurrentPrice returns the latest price for symbol, or false when none is available
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	quote, err := c.Quote(ctx, symbol)
	if err != nil || quote.Price <= 0 {
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Msg("No current price")
		}
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(quote.Price), true
}

func (c *Client) fromCache(table, key string, out interface{}, freshOnly bool) bool {
	if c.cacheRepo == nil {
		return false
	}

	var found bool
	var err error
	if freshOnly {
		found, err = c.cacheRepo.GetIfFresh(table, key, out)
	} else {
		found, err = c.cacheRepo.Get(table, key, out)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to read cache")
		return false
	}
	return found
}

func (c *Client) toCache(table, key string, data interface{}, ttl time.Duration) {
	if c.cacheRepo == nil {
		return
	}
	if err := c.cacheRepo.Store(table, key, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to write cache")
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
