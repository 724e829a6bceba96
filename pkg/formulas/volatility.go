package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingVolatility calculates the annualized volatility of the most recent
// window of daily closes using go-talib's rolling standard deviation.
//
// Args:
//
//	closes: Array of daily closing prices, oldest first
//	window: Number of daily returns in the window (typically 30)
//
// Returns:
//
//	Annualized volatility or nil if insufficient data
func RollingVolatility(closes []float64, window int) *float64 {
	if window < 2 || len(closes) < window+1 {
		return nil
	}

	returns := CalculateReturns(closes)

	// Use go-talib for the rolling standard deviation
	stds := talib.StdDev(returns, window, 1.0)
	if len(stds) == 0 {
		return nil
	}

	last := stds[len(stds)-1]
	if isNaN(last) {
		return nil
	}

	vol := last * math.Sqrt(252)
	return &vol
}

// AverageTrueRange calculates the current ATR from daily bars using go-talib.
// Returns nil if there is insufficient data for the period.
func AverageTrueRange(highs, lows, closes []float64, period int) *float64 {
	if period < 1 || len(closes) <= period || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, period)
	if len(atr) == 0 {
		return nil
	}

	last := atr[len(atr)-1]
	if isNaN(last) {
		return nil
	}

	return &last
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
