package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/internal/modules/ledger"
	"github.com/aristath/wheelhouse/internal/modules/snapshots"
)

func seriesOf(values ...float64) *snapshots.Series {
	s := snapshots.NewSeries("run-1", nopLog())
	for i, v := range values {
		s.Append(snapshots.DailySnapshot{Date: d(11 + i), TotalValue: v, AtRiskCapital: 1000})
	}
	return s
}

func realizedTrade(action domain.TradeAction, pnl float64) ledger.Trade {
	return ledger.Trade{
		RunID: "run-1", Date: d(11), Action: action,
		Symbol: "AAPL_X", Underlying: "AAPL", Kind: domain.OptionKindPut, Quantity: 1,
		RealizedPnL: &pnl,
	}
}

func TestComputeResultWinRate(t *testing.T) {
	win, loss := 120.0, -80.0
	trades := []ledger.Trade{
		{RunID: "run-1", Date: d(11), Action: domain.TradeActionOpen,
			Symbol: "AAPL_X", Underlying: "AAPL", Kind: domain.OptionKindPut, Quantity: -1, Fill: 2.05},
		realizedTrade(domain.TradeActionClose, win),
		realizedTrade(domain.TradeActionClose, loss),
		realizedTrade(domain.TradeActionAssignment, win),
	}

	result := computeResult("run-1", d(11), d(13), 100_000, 0.04, trades, seriesOf(100_000, 100_100, 100_200), nil)

	// Two of the three realized trades made money
	require.NotNil(t, result.WinRate)
	assert.InDelta(t, 2.0/3.0, *result.WinRate, 1e-9)
	assert.Equal(t, 4, result.TotalTrades)
}

func TestComputeResultWinRateNilWithoutRealizedTrades(t *testing.T) {
	trades := []ledger.Trade{
		{RunID: "run-1", Date: d(11), Action: domain.TradeActionOpen,
			Symbol: "AAPL_X", Underlying: "AAPL", Kind: domain.OptionKindPut, Quantity: -1, Fill: 2.05},
	}
	result := computeResult("run-1", d(11), d(11), 100_000, 0.04, trades, seriesOf(100_000), nil)
	assert.Nil(t, result.WinRate)
}

func TestComputeResultCyclesBySymbol(t *testing.T) {
	cycles := map[string]int{"AAPL": 2, "MSFT": 1}
	result := computeResult("run-1", d(11), d(12), 100_000, 0.04, nil, seriesOf(100_000, 100_050), cycles)

	assert.Equal(t, 3, result.CompletedCycles)
	assert.Equal(t, cycles, result.CyclesBySymbol)
}

func TestComputeResultDrawdownAndVolatility(t *testing.T) {
	// Peak 102,000 then a slide to 91,800: max and current drawdown are both
	// 10% and the series has spent two days under the peak
	result := computeResult("run-1", d(11), d(14), 100_000, 0.04, nil,
		seriesOf(100_000, 102_000, 96_900, 91_800), nil)

	assert.InDelta(t, 0.10, result.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.10, result.CurrentDrawdown, 1e-9)
	assert.Equal(t, 2, result.DaysInDrawdown)
	assert.Greater(t, result.Volatility, 0.0)
}
