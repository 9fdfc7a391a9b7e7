package marketdata

import "time"

// SearchResult is a symbol match from the search endpoint
type SearchResult struct {
	Symbol   string `json:"symbol" msgpack:"symbol"`
	Name     string `json:"name" msgpack:"name"`
	Type     string `json:"type" msgpack:"type"`
	Region   string `json:"region" msgpack:"region"`
	Currency string `json:"currency" msgpack:"currency"`
}

// Quote is a point-in-time price snapshot for a symbol
type Quote struct {
	Symbol        string    `json:"symbol" msgpack:"symbol"`
	Name          string    `json:"name" msgpack:"name"`
	Price         float64   `json:"price" msgpack:"price"`
	Change        *float64  `json:"change" msgpack:"change"`
	ChangePercent *float64  `json:"change_percent" msgpack:"change_percent"`
	Volume        int64     `json:"volume" msgpack:"volume"`
	MarketCap     *int64    `json:"market_cap" msgpack:"market_cap"`
	DayHigh       *float64  `json:"day_high" msgpack:"day_high"`
	DayLow        *float64  `json:"day_low" msgpack:"day_low"`
	Open          *float64  `json:"open" msgpack:"open"`
	PreviousClose *float64  `json:"previous_close" msgpack:"previous_close"`
	Currency      string    `json:"currency" msgpack:"currency"`
	Source        string    `json:"source" msgpack:"source"`
	Timestamp     time.Time `json:"timestamp" msgpack:"timestamp"`
}

// HistoryPoint is one daily bar
type HistoryPoint struct {
	Date   string  `json:"date" msgpack:"date"`
	Open   float64 `json:"open" msgpack:"open"`
	High   float64 `json:"high" msgpack:"high"`
	Low    float64 `json:"low" msgpack:"low"`
	Close  float64 `json:"close" msgpack:"close"`
	Volume int64   `json:"volume" msgpack:"volume"`
}

// Analytics summarizes a price history
type Analytics struct {
	MeanDailyReturn      float64  `json:"mean_daily_return" msgpack:"mean_daily_return"`
	Volatility           float64  `json:"volatility" msgpack:"volatility"`
	AnnualizedVolatility float64  `json:"annualized_volatility" msgpack:"annualized_volatility"`
	PeriodReturn         float64  `json:"period_return" msgpack:"period_return"`
	SMA20                *float64 `json:"sma_20" msgpack:"sma_20"`
	RSI14                *float64 `json:"rsi_14" msgpack:"rsi_14"`
}

// History is a price history for a period
type History struct {
	Symbol    string         `json:"symbol" msgpack:"symbol"`
	Period    string         `json:"period" msgpack:"period"`
	Data      []HistoryPoint `json:"data" msgpack:"data"`
	Analytics *Analytics     `json:"analytics" msgpack:"analytics"`
}

// Company holds company profile and fundamentals
type Company struct {
	Symbol           string   `json:"symbol" msgpack:"symbol"`
	Name             string   `json:"name" msgpack:"name"`
	Description      string   `json:"description" msgpack:"description"`
	Sector           string   `json:"sector" msgpack:"sector"`
	Industry         string   `json:"industry" msgpack:"industry"`
	Country          string   `json:"country" msgpack:"country"`
	Website          string   `json:"website" msgpack:"website"`
	Employees        *int64   `json:"employees" msgpack:"employees"`
	MarketCap        *int64   `json:"market_cap" msgpack:"market_cap"`
	PERatio          *float64 `json:"pe_ratio" msgpack:"pe_ratio"`
	ForwardPE        *float64 `json:"forward_pe" msgpack:"forward_pe"`
	DividendYield    *float64 `json:"dividend_yield" msgpack:"dividend_yield"`
	Beta             *float64 `json:"beta" msgpack:"beta"`
	FiftyTwoWeekHigh *float64 `json:"52_week_high" msgpack:"52_week_high"`
	FiftyTwoWeekLow  *float64 `json:"52_week_low" msgpack:"52_week_low"`
	AvgVolume        *int64   `json:"avg_volume" msgpack:"avg_volume"`
	Currency         string   `json:"currency" msgpack:"currency"`
}

// periodRanges maps API periods to Yahoo chart ranges
var periodRanges = map[string]string{
	"1D": "1d",
	"1W": "5d",
	"1M": "1mo",
	"3M": "3mo",
	"6M": "6mo",
	"1Y": "1y",
	"5Y": "5y",
}

// ValidPeriod reports whether period is one of 1D, 1W, 1M, 3M, 6M, 1Y, 5Y
func ValidPeriod(period string) bool {
	_, ok := periodRanges[period]
	return ok
}
