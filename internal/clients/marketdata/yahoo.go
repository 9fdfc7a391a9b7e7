package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *yahooError   `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string   `json:"symbol"`
		Currency             string   `json:"currency"`
		LongName             string   `json:"longName"`
		ShortName            string   `json:"shortName"`
		RegularMarketPrice   *float64 `json:"regularMarketPrice"`
		ChartPreviousClose   *float64 `json:"chartPreviousClose"`
		PreviousClose        *float64 `json:"previousClose"`
		RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
		RegularMarketVolume  *int64   `json:"regularMarketVolume"`
		RegularMarketTime    int64    `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		QuoteType string `json:"quoteType"`
		Exchange  string `json:"exchange"`
		Currency  string `json:"currency"`
	} `json:"quotes"`
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v *rawValue) asFloat() *float64 {
	if v == nil {
		return nil
	}
	return v.Raw
}

func (v *rawValue) asInt() *int64 {
	if v == nil || v.Raw == nil {
		return nil
	}
	n := int64(*v.Raw)
	return &n
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile *struct {
				LongBusinessSummary string `json:"longBusinessSummary"`
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				Country             string `json:"country"`
				Website             string `json:"website"`
				FullTimeEmployees   *int64 `json:"fullTimeEmployees"`
			} `json:"assetProfile"`
			Price *struct {
				LongName  string    `json:"longName"`
				ShortName string    `json:"shortName"`
				Currency  string    `json:"currency"`
				MarketCap *rawValue `json:"marketCap"`
			} `json:"price"`
			SummaryDetail *struct {
				TrailingPE       *rawValue `json:"trailingPE"`
				ForwardPE        *rawValue `json:"forwardPE"`
				DividendYield    *rawValue `json:"dividendYield"`
				Beta             *rawValue `json:"beta"`
				FiftyTwoWeekHigh *rawValue `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  *rawValue `json:"fiftyTwoWeekLow"`
				AverageVolume    *rawValue `json:"averageVolume"`
			} `json:"summaryDetail"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

func (c *Client) fetchChart(ctx context.Context, symbol, chartRange string) (*chartResult, error) {
	params := url.Values{}
	params.Set("range", chartRange)
	params.Set("interval", "1d")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.yahooBaseURL, url.PathEscape(symbol), params.Encode())

	var resp chartResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Chart.Result[0], nil
}

func (c *Client) yahooQuote(ctx context.Context, symbol string) (*Quote, error) {
	chart, err := c.fetchChart(ctx, symbol, "1d")
	if err != nil {
		return nil, err
	}

	meta := chart.Meta
	if meta.RegularMarketPrice == nil {
		return nil, fmt.Errorf("%w: no market price for %s", ErrNotFound, symbol)
	}

	quote := &Quote{
		Symbol:        symbol,
		Name:          firstNonEmpty(meta.LongName, meta.ShortName, symbol),
		Price:         *meta.RegularMarketPrice,
		DayHigh:       meta.RegularMarketDayHigh,
		DayLow:        meta.RegularMarketDayLow,
		PreviousClose: meta.PreviousClose,
		Currency:      firstNonEmpty(meta.Currency, "USD"),
		Source:        "yahoo",
		Timestamp:     c.now().UTC(),
	}
	if quote.PreviousClose == nil {
		quote.PreviousClose = meta.ChartPreviousClose
	}
	if meta.RegularMarketVolume != nil {
		quote.Volume = *meta.RegularMarketVolume
	}
	if len(chart.Indicators.Quote) > 0 {
		for _, open := range chart.Indicators.Quote[0].Open {
			if open != nil {
				v := *open
				quote.Open = &v
				break
			}
		}
	}
	if quote.PreviousClose != nil && *quote.PreviousClose != 0 {
		change := round2(quote.Price - *quote.PreviousClose)
		changePercent := round2((quote.Price - *quote.PreviousClose) / *quote.PreviousClose * 100)
		quote.Change = &change
		quote.ChangePercent = &changePercent
	}

	return quote, nil
}

func (c *Client) yahooHistory(ctx context.Context, symbol, period string) (*History, error) {
	chart, err := c.fetchChart(ctx, symbol, periodRanges[period])
	if err != nil {
		return nil, err
	}
	if len(chart.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", ErrNotFound, symbol)
	}

	bars := chart.Indicators.Quote[0]
	points := make([]HistoryPoint, 0, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		open, high, low, closePrice := at(bars.Open, i), at(bars.High, i), at(bars.Low, i), at(bars.Close, i)
		// partial bars are reported with null prices
		if open == nil || high == nil || low == nil || closePrice == nil {
			continue
		}
		point := HistoryPoint{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:  round2(*open),
			High:  round2(*high),
			Low:   round2(*low),
			Close: round2(*closePrice),
		}
		if v := at(bars.Volume, i); v != nil {
			point.Volume = *v
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", ErrNotFound, symbol)
	}

	return &History{
		Symbol:    symbol,
		Period:    period,
		Data:      points,
		Analytics: Analyze(points),
	}, nil
}

func (c *Client) yahooSearch(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", "10")
	params.Set("newsCount", "0")
	params.Set("listsCount", "0")

	var resp searchResponse
	if err := c.getJSON(ctx, c.yahooBaseURL+"/v1/finance/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.QuoteType != "EQUITY" && q.QuoteType != "ETF" {
			continue
		}
		results = append(results, SearchResult{
			Symbol:   q.Symbol,
			Name:     firstNonEmpty(q.LongName, q.ShortName),
			Type:     q.QuoteType,
			Region:   q.Exchange,
			Currency: firstNonEmpty(q.Currency, "USD"),
		})
	}
	return results, nil
}

func (c *Client) yahooCompany(ctx context.Context, symbol string) (*Company, error) {
	params := url.Values{}
	params.Set("modules", "assetProfile,price,summaryDetail")
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", c.yahooBaseURL, url.PathEscape(symbol), params.Encode())

	var resp quoteSummaryResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, ErrNotFound
	}

	r := resp.QuoteSummary.Result[0]
	company := &Company{Symbol: symbol, Currency: "USD"}
	if p := r.Price; p != nil {
		company.Name = firstNonEmpty(p.LongName, p.ShortName)
		company.Currency = firstNonEmpty(p.Currency, "USD")
		company.MarketCap = p.MarketCap.asInt()
	}
	if a := r.AssetProfile; a != nil {
		company.Description = a.LongBusinessSummary
		company.Sector = a.Sector
		company.Industry = a.Industry
		company.Country = a.Country
		company.Website = a.Website
		company.Employees = a.FullTimeEmployees
	}
	if s := r.SummaryDetail; s != nil {
		company.PERatio = s.TrailingPE.asFloat()
		company.ForwardPE = s.ForwardPE.asFloat()
		company.DividendYield = s.DividendYield.asFloat()
		company.Beta = s.Beta.asFloat()
		company.FiftyTwoWeekHigh = s.FiftyTwoWeekHigh.asFloat()
		company.FiftyTwoWeekLow = s.FiftyTwoWeekLow.asFloat()
		company.AvgVolume = s.AverageVolume.asInt()
	}
	if company.Name == "" && r.AssetProfile == nil {
		return nil, fmt.Errorf("%w: no profile for %s", ErrNotFound, symbol)
	}

	return company, nil
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
