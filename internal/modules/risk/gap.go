package risk

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/config"
	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/pkg/formulas"
)

const atrPeriod = 14

// GapService vetoes symbols whose overnight gap exceeds the configured
// threshold and flags open positions for forced closure on large intraday
// moves. When ATR normalization is enabled, volatile names earn a wider
// gap allowance proportional to their average true range.
type GapService struct {
	data domain.MarketDataProvider
	cfg  config.StrategyConfig
	log  zerolog.Logger
}

// NewGapService creates a new gap risk service
func NewGapService(data domain.MarketDataProvider, cfg config.StrategyConfig, log zerolog.Logger) *GapService {
	return &GapService{
		data: data,
		cfg:  cfg,
		log:  log.With().Str("service", "gap_risk").Logger(),
	}
}

// FilterByGapRisk partitions symbols into tradeable and vetoed for the date.
// Vetoed symbols map to their observed gap fraction so the caller can record
// the percentage on the skipped ledger entry. Symbols with missing bar data
// pass through; the scanner deals with missing data on its own.
func (g *GapService) FilterByGapRisk(symbols []string, date time.Time) ([]string, map[string]float64) {
	tradeable := make([]string, 0, len(symbols))
	vetoed := make(map[string]float64)

	for _, symbol := range symbols {
		gap, threshold, ok := g.overnightGap(symbol, date)
		if !ok {
			tradeable = append(tradeable, symbol)
			continue
		}
		if gap > threshold {
			g.log.Info().
				Str("symbol", symbol).
				Float64("gap_pct", gap).
				Float64("threshold", threshold).
				Msg("Symbol vetoed for gap risk")
			vetoed[symbol] = gap
			continue
		}
		tradeable = append(tradeable, symbol)
	}

	return tradeable, vetoed
}

// ShouldCloseForGap reports whether an open position must be force-closed
// because the intraday move from the previous close breaches the execution
// gap limit. The returned fraction is recorded on the closing ledger entry.
func (g *GapService) ShouldCloseForGap(currentPrice, previousClose float64) (bool, float64) {
	if previousClose <= 0 {
		return false, 0
	}
	gap := math.Abs(currentPrice-previousClose) / previousClose
	return gap > g.cfg.ExecutionMaxGapPct, gap
}

// overnightGap returns the open-vs-previous-close gap fraction for a symbol
// along with the applicable veto threshold. ok is false when the bars needed
// to measure the gap are missing.
func (g *GapService) overnightGap(symbol string, date time.Time) (gap, threshold float64, ok bool) {
	bars, err := g.data.GetRecentBars(symbol, date, atrPeriod+2)
	if err != nil || len(bars) < 2 {
		return 0, 0, false
	}

	today := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	if !sameDay(today.Date, date) || prev.Close <= 0 {
		return 0, 0, false
	}

	gap = math.Abs(today.Open-prev.Close) / prev.Close
	threshold = g.cfg.MaxGapPct

	if g.cfg.GapATRMultiple > 0 {
		if atrAllowance := g.atrAllowance(bars[:len(bars)-1], prev.Close); atrAllowance > threshold {
			threshold = atrAllowance
		}
	}

	return gap, threshold, true
}

// atrAllowance converts the ATR of the prior bars into a gap fraction scaled
// by the configured multiple
func (g *GapService) atrAllowance(bars []domain.StockBar, prevClose float64) float64 {
	if len(bars) <= atrPeriod || prevClose <= 0 {
		return 0
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}

	atr := formulas.AverageTrueRange(highs, lows, closes, atrPeriod)
	if atr == nil {
		return 0
	}
	return g.cfg.GapATRMultiple * *atr / prevClose
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
