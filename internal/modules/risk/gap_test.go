package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/wheelhouse/internal/config"
	"github.com/aristath/wheelhouse/internal/domain"
)

// stubData serves canned bars; every other lookup reports missing data
type stubData struct {
	bars map[string][]domain.StockBar
}

func (s *stubData) GetStockBar(symbol string, date time.Time) (*domain.StockBar, error) {
	return nil, domain.ErrMissingData
}

func (s *stubData) GetChainSnapshot(symbol string, date time.Time, spot float64) (*domain.ChainSnapshot, error) {
	return nil, domain.ErrMissingData
}

func (s *stubData) GetOptionQuote(optionSymbol string, date time.Time) (*domain.OptionQuote, error) {
	return nil, domain.ErrMissingData
}

func (s *stubData) GetRecentBars(symbol string, date time.Time, n int) ([]domain.StockBar, error) {
	bars, ok := s.bars[symbol]
	if !ok {
		return nil, domain.ErrMissingData
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (s *stubData) VolatilityHint(symbol string, date time.Time) float64 { return 0 }

// flatBars builds n quiet daily bars closing at price, ending the day before
// end, then one final bar for end opening at openPrice
func flatBars(symbol string, end time.Time, n int, price, openPrice float64) []domain.StockBar {
	bars := make([]domain.StockBar, 0, n+1)
	for i := n; i >= 1; i-- {
		d := end.AddDate(0, 0, -i)
		bars = append(bars, domain.StockBar{
			Date: d, Symbol: symbol,
			Open: price, High: price * 1.005, Low: price * 0.995, Close: price,
		})
	}
	bars = append(bars, domain.StockBar{
		Date: end, Symbol: symbol,
		Open: openPrice, High: openPrice, Low: openPrice, Close: openPrice,
	})
	return bars
}

func TestFilterByGapRisk(t *testing.T) {
	cfg := config.DefaultStrategy()
	cfg.MaxGapPct = 0.05
	cfg.GapATRMultiple = 0 // raw threshold only

	data := &stubData{bars: map[string][]domain.StockBar{
		"CALM": flatBars("CALM", testDate, 20, 100, 101), // 1% gap
		"WILD": flatBars("WILD", testDate, 20, 100, 92),  // 8% gap down
	}}
	svc := NewGapService(data, cfg, nopLog())

	tradeable, vetoed := svc.FilterByGapRisk([]string{"CALM", "WILD"}, testDate)

	assert.Equal(t, []string{"CALM"}, tradeable)
	assert.InDelta(t, 0.08, vetoed["WILD"], 0.001)
}

func TestFilterByGapRiskPassesMissingData(t *testing.T) {
	svc := NewGapService(&stubData{bars: map[string][]domain.StockBar{}}, config.DefaultStrategy(), nopLog())

	// A symbol with no bars cannot be gap-checked; it passes through and the
	// scanner handles the missing data downstream
	tradeable, vetoed := svc.FilterByGapRisk([]string{"GHOST"}, testDate)
	assert.Equal(t, []string{"GHOST"}, tradeable)
	assert.Empty(t, vetoed)
}

func TestFilterByGapRiskATRAllowance(t *testing.T) {
	cfg := config.DefaultStrategy()
	cfg.MaxGapPct = 0.02
	cfg.GapATRMultiple = 3.0

	// Bars swing ±5% daily, so ATR ≈ 10 on a 100 close; a 6% gap is well
	// inside 3×ATR even though it breaches the raw 2% threshold
	end := testDate
	bars := make([]domain.StockBar, 0, 21)
	for i := 20; i >= 1; i-- {
		bars = append(bars, domain.StockBar{
			Date: end.AddDate(0, 0, -i), Symbol: "SWING",
			Open: 100, High: 105, Low: 95, Close: 100,
		})
	}
	bars = append(bars, domain.StockBar{Date: end, Symbol: "SWING", Open: 106, High: 106, Low: 106, Close: 106})

	svc := NewGapService(&stubData{bars: map[string][]domain.StockBar{"SWING": bars}}, cfg, nopLog())
	tradeable, vetoed := svc.FilterByGapRisk([]string{"SWING"}, testDate)

	assert.Equal(t, []string{"SWING"}, tradeable)
	assert.Empty(t, vetoed)
}

func TestShouldCloseForGap(t *testing.T) {
	cfg := config.DefaultStrategy()
	cfg.ExecutionMaxGapPct = 0.08
	svc := NewGapService(&stubData{}, cfg, nopLog())

	closeIt, gap := svc.ShouldCloseForGap(108.5, 100)
	assert.True(t, closeIt)
	assert.InDelta(t, 0.085, gap, 1e-9)

	closeIt, gap = svc.ShouldCloseForGap(95, 100)
	assert.False(t, closeIt)
	assert.InDelta(t, 0.05, gap, 1e-9)

	// Degenerate previous close never forces a close
	closeIt, _ = svc.ShouldCloseForGap(100, 0)
	assert.False(t, closeIt)
}
