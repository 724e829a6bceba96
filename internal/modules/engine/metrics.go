package engine

import (
	"time"

	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/internal/modules/ledger"
	"github.com/aristath/wheelhouse/internal/modules/snapshots"
	"github.com/aristath/wheelhouse/pkg/formulas"
)

// Result aggregates the final metrics of one completed run
type Result struct {
	RunID            string    `json:"run_id"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	TradingDays      int       `json:"trading_days"`
	InitialCash      float64   `json:"initial_cash"`
	FinalValue       float64   `json:"final_value"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	SharpeRatio      *float64  `json:"sharpe_ratio"` // nil when the guard trips
	TotalTrades      int       `json:"total_trades"`
	OptionsOpened    int       `json:"options_opened"`
	Assignments      int       `json:"assignments"`
	AssignmentRate   float64   `json:"assignment_rate"`
	SkippedTrades    int       `json:"skipped_trades"`
	PremiumCollected float64   `json:"premium_collected"`
	WinRate          *float64  `json:"win_rate"` // nil when no trade realized P&L
	CompletedCycles  int       `json:"completed_cycles"`

	CyclesBySymbol map[string]int `json:"cycles_by_symbol"`

	CurrentDrawdown float64 `json:"current_drawdown"`
	DaysInDrawdown  int     `json:"days_in_drawdown"`
	Volatility      float64 `json:"volatility"` // annualized, from daily snapshot returns

	AtRiskPeak    float64 `json:"at_risk_peak"`
	AtRiskAverage float64 `json:"at_risk_average"`
}

// computeResult derives final metrics from the ledger and snapshot series
func computeResult(runID string, start, end time.Time, initialCash, riskFreeRate float64, trades []ledger.Trade, series *snapshots.Series, cycles map[string]int) *Result {
	result := &Result{
		RunID:          runID,
		StartDate:      start,
		EndDate:        end,
		TradingDays:    series.Len(),
		InitialCash:    initialCash,
		FinalValue:     initialCash,
		CyclesBySymbol: cycles,
	}
	for _, n := range cycles {
		result.CompletedCycles += n
	}

	values := series.TotalValues()
	if len(values) > 0 {
		result.FinalValue = values[len(values)-1]
	}
	if initialCash > 0 {
		result.TotalReturn = (result.FinalValue - initialCash) / initialCash
	}

	calendarDays := int(end.Sub(start).Hours() / 24)
	result.AnnualizedReturn = formulas.AnnualizedReturn(result.TotalReturn, calendarDays)

	if dd := formulas.CalculateDrawdownMetrics(values); dd != nil {
		result.MaxDrawdown = dd.MaxDrawdown
		result.CurrentDrawdown = dd.CurrentDrawdown
		result.DaysInDrawdown = dd.DaysInDrawdown
	}

	dailyReturns := formulas.CalculateReturns(values)
	result.SharpeRatio = formulas.CalculateSharpeRatio(dailyReturns, riskFreeRate, 252)
	result.Volatility = formulas.AnnualizedVolatility(dailyReturns)

	realized, wins := 0, 0
	for _, t := range trades {
		if t.RealizedPnL != nil {
			realized++
			if *t.RealizedPnL > 0 {
				wins++
			}
		}
		switch t.Action {
		case domain.TradeActionOpen:
			result.TotalTrades++
			result.OptionsOpened++
			result.PremiumCollected += t.Fill * 100 * float64(-t.Quantity)
		case domain.TradeActionClose:
			result.TotalTrades++
		case domain.TradeActionAssignment:
			result.TotalTrades++
			result.Assignments++
		case domain.TradeActionSkipped:
			result.SkippedTrades++
		}
	}
	if result.OptionsOpened > 0 {
		result.AssignmentRate = float64(result.Assignments) / float64(result.OptionsOpened)
	}
	if realized > 0 {
		winRate := float64(wins) / float64(realized)
		result.WinRate = &winRate
	}

	var atRiskSum float64
	for _, snap := range series.Snapshots() {
		atRiskSum += snap.AtRiskCapital
		if snap.AtRiskCapital > result.AtRiskPeak {
			result.AtRiskPeak = snap.AtRiskCapital
		}
	}
	if series.Len() > 0 {
		result.AtRiskAverage = atRiskSum / float64(series.Len())
	}

	return result
}
