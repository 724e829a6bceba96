package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wheelhouse/internal/domain"
)

var testDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func newTestPortfolio(cash float64) *Portfolio {
	return New(cash, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestAddStockLotMergesWithWeightedAverageCost(t *testing.T) {
	p := newTestPortfolio(50_000)

	require.NoError(t, p.AddStockLot("AAPL", 100, 100.0, testDate))
	require.NoError(t, p.AddStockLot("AAPL", 100, 110.0, testDate))

	lot := p.StockLot("AAPL")
	require.NotNil(t, lot)
	assert.Equal(t, 200, lot.Shares)
	assert.InDelta(t, 105.0, lot.AvgCost, 1e-9)
}

func TestAddStockLotRejectsNonPositiveShares(t *testing.T) {
	p := newTestPortfolio(0)
	assert.Error(t, p.AddStockLot("AAPL", 0, 100, testDate))
	assert.Error(t, p.AddStockLot("AAPL", -100, 100, testDate))
}

func TestRemoveStockShares(t *testing.T) {
	p := newTestPortfolio(0)
	require.NoError(t, p.AddStockLot("AAPL", 200, 100, testDate))

	require.NoError(t, p.RemoveStockShares("AAPL", 100))
	assert.Equal(t, 100, p.StockLot("AAPL").Shares)

	// Removing more than held violates the caller contract
	assert.Error(t, p.RemoveStockShares("AAPL", 150))
	assert.Equal(t, 100, p.StockLot("AAPL").Shares) // unchanged

	// Removing exactly the balance deletes the lot
	require.NoError(t, p.RemoveStockShares("AAPL", 100))
	assert.Nil(t, p.StockLot("AAPL"))

	assert.Error(t, p.RemoveStockShares("MSFT", 1))
}

func TestNewOptionLotValidatesInvariants(t *testing.T) {
	exp := testDate.AddDate(0, 1, 0)

	// Long quantity is never legal in this strategy
	_, err := NewOptionLot("AAPL_P95", "AAPL", domain.OptionKindPut, 95, exp, 1, 1.50, testDate)
	assert.Error(t, err)

	_, err = NewOptionLot("AAPL_P95", "AAPL", domain.OptionKindPut, -95, exp, -1, 1.50, testDate)
	assert.Error(t, err) // negative strike... strike must be positive

	lot, err := NewOptionLot("AAPL_P95", "AAPL", domain.OptionKindPut, 95, exp, -2, 1.50, testDate)
	require.NoError(t, err)
	assert.Equal(t, 2, lot.Contracts())
	assert.Equal(t, 19_000.0, lot.Notional())
	assert.InDelta(t, -300.0, lot.MarketValue(), 1e-9) // 1.50 × 100 × -2
}

func TestOptionLotLifecycle(t *testing.T) {
	p := newTestPortfolio(10_000)
	exp := testDate.AddDate(0, 1, 0)

	lot, err := NewOptionLot("AAPL_P95", "AAPL", domain.OptionKindPut, 95, exp, -1, 2.00, testDate)
	require.NoError(t, err)

	p.AddOptionLot(lot)
	assert.Equal(t, 1, p.OpenOptionCount())
	assert.Len(t, p.OptionLotsFor("AAPL"), 1)
	assert.Empty(t, p.OptionLotsFor("MSFT"))

	require.NoError(t, p.RemoveOptionLot(lot))
	assert.Equal(t, 0, p.OpenOptionCount())
	assert.Error(t, p.RemoveOptionLot(lot)) // already gone
}

func TestAggregates(t *testing.T) {
	p := newTestPortfolio(10_000)
	exp := testDate.AddDate(0, 1, 0)

	require.NoError(t, p.AddStockLot("AAPL", 100, 100, testDate))

	put, err := NewOptionLot("MSFT_P300", "MSFT", domain.OptionKindPut, 300, exp, -1, 3.00, testDate)
	require.NoError(t, err)
	p.AddOptionLot(put)

	assert.InDelta(t, 10_000.0, p.Cash(), 1e-9)
	assert.InDelta(t, 10_000.0, p.StockValue(), 1e-9)
	assert.InDelta(t, -300.0, p.OptionValue(), 1e-9)
	assert.InDelta(t, 19_700.0, p.TotalValue(), 1e-9)

	// At-risk: stock value + put notional
	assert.InDelta(t, 40_000.0, p.AtRiskCapital(), 1e-9)

	// Per-symbol exposure
	assert.InDelta(t, 10_000.0, p.SymbolExposure("AAPL"), 1e-9)
	assert.InDelta(t, 30_000.0, p.SymbolExposure("MSFT"), 1e-9)
}

func TestDebitWarnsButAllowsNegativeCash(t *testing.T) {
	p := newTestPortfolio(100)
	p.Debit(500)
	assert.InDelta(t, -400.0, p.Cash(), 1e-9)
	p.Credit(1000)
	assert.InDelta(t, 600.0, p.Cash(), 1e-9)
}

// stubData serves canned bars for mark-to-market tests
type stubData struct {
	bars map[string]float64 // symbol -> close
	vol  float64
}

func (s *stubData) GetStockBar(symbol string, date time.Time) (*domain.StockBar, error) {
	close, ok := s.bars[symbol]
	if !ok {
		return nil, domain.ErrMissingData
	}
	return &domain.StockBar{Symbol: symbol, Date: date, Close: close, High: close, Low: close, Open: close}, nil
}

func (s *stubData) GetChainSnapshot(string, time.Time, float64) (*domain.ChainSnapshot, error) {
	return nil, domain.ErrMissingData
}

func (s *stubData) GetOptionQuote(string, time.Time) (*domain.OptionQuote, error) {
	return nil, domain.ErrMissingData
}

func (s *stubData) GetRecentBars(string, time.Time, int) ([]domain.StockBar, error) {
	return nil, nil
}

func (s *stubData) VolatilityHint(string, time.Time) float64 { return s.vol }

// stubValuer returns a fixed price for every option lot
type stubValuer struct{ price float64 }

func (v stubValuer) Value(*OptionLot, time.Time, float64, float64) float64 { return v.price }

func TestMarkToMarket(t *testing.T) {
	p := newTestPortfolio(10_000)
	exp := testDate.AddDate(0, 1, 0)

	require.NoError(t, p.AddStockLot("AAPL", 100, 100, testDate))
	put, err := NewOptionLot("AAPL_P95", "AAPL", domain.OptionKindPut, 95, exp, -1, 2.00, testDate)
	require.NoError(t, err)
	p.AddOptionLot(put)

	data := &stubData{bars: map[string]float64{"AAPL": 104}, vol: 0.25}
	p.MarkToMarket(testDate, data, stubValuer{price: 1.40})

	assert.InDelta(t, 10_400.0, p.StockValue(), 1e-9)
	assert.InDelta(t, -140.0, p.OptionValue(), 1e-9)
	assert.InDelta(t, 104.0, p.StockLot("AAPL").LastPrice, 1e-9)
	assert.InDelta(t, 1.40, put.LastPrice, 1e-9)
}

func TestMarkToMarketSkipsMissingData(t *testing.T) {
	p := newTestPortfolio(0)
	require.NoError(t, p.AddStockLot("AAPL", 100, 100, testDate))

	// No bar for AAPL: previous mark survives
	p.MarkToMarket(testDate, &stubData{bars: map[string]float64{}}, stubValuer{})
	assert.InDelta(t, 10_000.0, p.StockValue(), 1e-9)
}
