package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestMeanStdDev(t *testing.T) {
	mean, sd := MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	// sample standard deviation
	assert.InDelta(t, math.Sqrt(32.0/7.0), sd, 1e-12)

	mean, sd = MeanStdDev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, sd)

	mean, sd = MeanStdDev([]float64{3})
	assert.Equal(t, 3.0, mean)
	assert.Zero(t, sd)
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99, 0, 10})
	require.Len(t, returns, 4)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)
	assert.InDelta(t, -1.0, returns[2], 1e-12)
	assert.Zero(t, returns[3])

	assert.Empty(t, CalculateReturns([]float64{1}))
}

func TestAnnualizedVolatility(t *testing.T) {
	assert.Zero(t, AnnualizedVolatility([]float64{0.01, 0.01, 0.01}))

	returns := []float64{0.01, -0.01}
	_, sd := MeanStdDev(returns)
	assert.InDelta(t, sd*math.Sqrt(252), AnnualizedVolatility(returns), 1e-12)
}

func TestCalculateSMA(t *testing.T) {
	closes := series(25, func(i int) float64 { return float64(i + 1) })

	sma := CalculateSMA(closes, 20)
	require.NotNil(t, sma)
	// mean of 6..25
	assert.InDelta(t, 15.5, *sma, 1e-9)

	assert.Nil(t, CalculateSMA(closes[:19], 20))
	assert.Nil(t, CalculateSMA(closes, 0))
}

func TestCalculateRSI(t *testing.T) {
	rising := series(30, func(i int) float64 { return 100 + float64(i) })
	rsi := CalculateRSI(rising, 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100.0, *rsi, 1e-9)

	falling := series(30, func(i int) float64 { return 100 - float64(i) })
	rsi = CalculateRSI(falling, 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 0.0, *rsi, 1e-9)

	assert.Nil(t, CalculateRSI(rising[:14], 14))
}
