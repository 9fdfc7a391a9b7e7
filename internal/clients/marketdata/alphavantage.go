package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
}

// alphaVantageQuote fetches GLOBAL_QUOTE as a fallback when Yahoo fails
func (c *Client) alphaVantageQuote(ctx context.Context, symbol string) (*Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", c.alphaVantageKey)

	var resp globalQuoteResponse
	if err := c.getJSON(ctx, c.alphaVantageBaseURL+"/query?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Note != "" || resp.Information != "" {
		return nil, fmt.Errorf("alpha vantage rate limited: %s", firstNonEmpty(resp.Note, resp.Information))
	}

	gq := resp.GlobalQuote
	if len(gq) == 0 || gq["05. price"] == "" {
		return nil, fmt.Errorf("%w: alpha vantage has no quote for %s", ErrNotFound, symbol)
	}

	price, err := strconv.ParseFloat(gq["05. price"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid alpha vantage price %q: %w", gq["05. price"], err)
	}

	quote := &Quote{
		Symbol:        firstNonEmpty(gq["01. symbol"], symbol),
		Name:          symbol,
		Price:         price,
		Change:        parseOptional(gq["09. change"]),
		ChangePercent: parseOptional(strings.TrimSuffix(gq["10. change percent"], "%")),
		DayHigh:       parseOptional(gq["03. high"]),
		DayLow:        parseOptional(gq["04. low"]),
		Open:          parseOptional(gq["02. open"]),
		PreviousClose: parseOptional(gq["08. previous close"]),
		Currency:      "USD",
		Source:        "alphavantage",
		Timestamp:     c.now().UTC(),
	}
	if v, err := strconv.ParseInt(gq["06. volume"], 10, 64); err == nil {
		quote.Volume = v
	}

	return quote, nil
}

func parseOptional(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
