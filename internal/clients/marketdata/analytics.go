package marketdata

import (
	"github.com/tradefolio/tracker/pkg/formulas"
)

const (
	smaPeriod = 20
	rsiPeriod = 14
)

// Analyze computes return statistics and indicators over closing prices.
// Returns nil when there are fewer than two points.
func Analyze(points []HistoryPoint) *Analytics {
	if len(points) < 2 {
		return nil
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	returns := formulas.CalculateReturns(closes)
	mean, sd := formulas.MeanStdDev(returns)

	a := &Analytics{
		MeanDailyReturn:      mean,
		Volatility:           sd,
		AnnualizedVolatility: formulas.AnnualizedVolatility(returns),
		SMA20:                formulas.CalculateSMA(closes, smaPeriod),
		RSI14:                formulas.CalculateRSI(closes, rsiPeriod),
	}
	if first := closes[0]; first != 0 {
		a.PeriodReturn = (closes[len(closes)-1] - first) / first
	}
	return a
}
