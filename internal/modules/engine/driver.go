// Package engine drives the simulation day by day: mark-to-market, gap
// checks, expiration and assignment processing, early closures, opportunity
// scanning and daily snapshotting, strictly in that order. All shared state
// (portfolio, wheel machine, ledger) is owned by the engine for one run.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/config"
	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/internal/modules/execution"
	"github.com/aristath/wheelhouse/internal/modules/ledger"
	"github.com/aristath/wheelhouse/internal/modules/market_hours"
	"github.com/aristath/wheelhouse/internal/modules/portfolio"
	"github.com/aristath/wheelhouse/internal/modules/risk"
	"github.com/aristath/wheelhouse/internal/modules/scanner"
	"github.com/aristath/wheelhouse/internal/modules/snapshots"
	"github.com/aristath/wheelhouse/internal/modules/valuation"
	"github.com/aristath/wheelhouse/internal/modules/wheel"
)

// Engine runs one backtest over a date range. Construct with New, call Run
// once; the engine is not reusable across runs.
type Engine struct {
	runID    string
	start    time.Time
	end      time.Time
	symbols  []string
	initial  float64
	strategy config.StrategyConfig

	data   domain.MarketDataProvider
	valuer *valuation.Valuer
	scan   *scanner.Scanner
	gate   *risk.Gate
	gaps   *risk.GapService

	pf     *portfolio.Portfolio
	wm     *wheel.Machine
	rec    *ledger.Recorder
	series *snapshots.Series
	sim    *execution.Simulator

	log zerolog.Logger
}

// New wires up a fresh engine for one run
func New(cfg *config.Config, strategy config.StrategyConfig, data domain.MarketDataProvider, log zerolog.Logger) *Engine {
	runID := uuid.New().String()

	pf := portfolio.New(cfg.InitialCash, log)
	wm := wheel.NewMachine(log)
	rec := ledger.NewRecorder(runID, log)
	greeks := valuation.BlackScholesCalculator{}

	return &Engine{
		runID:    runID,
		start:    cfg.StartDate,
		end:      cfg.EndDate,
		symbols:  cfg.Symbols,
		initial:  cfg.InitialCash,
		strategy: strategy,
		data:     data,
		valuer:   valuation.NewValuer(data, greeks, strategy.RiskFreeRate, log),
		scan:     scanner.NewScanner(greeks, strategy.RiskFreeRate, log),
		gate:     risk.NewGate(strategy, log),
		gaps:     risk.NewGapService(data, strategy, log),
		pf:       pf,
		wm:       wm,
		rec:      rec,
		series:   snapshots.NewSeries(runID, log),
		sim:      execution.NewSimulator(pf, wm, rec, strategy.CommissionPerContract, log),
		log:      log.With().Str("service", "engine").Logger(),
	}
}

// RunID returns the run's identifier
func (e *Engine) RunID() string {
	return e.runID
}

// Trades returns the ledger after Run completes
func (e *Engine) Trades() []ledger.Trade {
	return e.rec.Trades()
}

// Snapshots returns the daily snapshot series after Run completes
func (e *Engine) Snapshots() []snapshots.DailySnapshot {
	return e.series.Snapshots()
}

// Run simulates every trading day in the range and returns the final metrics.
// Per-symbol data gaps are skipped gracefully; only misconfiguration fails a
// run, and that is caught before Run is called.
func (e *Engine) Run() (*Result, error) {
	if e.end.Before(e.start) {
		return nil, fmt.Errorf("end date %s precedes start date %s",
			e.end.Format("2006-01-02"), e.start.Format("2006-01-02"))
	}

	days := market_hours.TradingDays(e.start, e.end)
	e.log.Info().
		Str("run_id", e.runID).
		Int("trading_days", len(days)).
		Strs("symbols", e.symbols).
		Msg("Backtest starting")

	for _, day := range days {
		if err := e.runDay(day); err != nil {
			return nil, fmt.Errorf("run failed on %s: %w", day.Format("2006-01-02"), err)
		}
	}

	cycles := make(map[string]int)
	for symbol, state := range e.wm.States() {
		if state.CompletedCycles > 0 {
			cycles[symbol] = state.CompletedCycles
		}
	}

	result := computeResult(e.runID, e.start, e.end, e.initial, e.strategy.RiskFreeRate, e.rec.Trades(), e.series, cycles)
	e.log.Info().
		Str("run_id", e.runID).
		Float64("final_value", result.FinalValue).
		Float64("total_return", result.TotalReturn).
		Int("trades", result.TotalTrades).
		Msg("Backtest complete")
	return result, nil
}

// runDay executes the fixed day sequence. The order is load-bearing:
// assignment can change wheel phase and stock lots that the same day's
// opportunity scan must observe.
func (e *Engine) runDay(date time.Time) error {
	e.pf.MarkToMarket(date, e.data, e.valuer)

	tradeable, err := e.gapCheck(date)
	if err != nil {
		return err
	}
	if err := e.processExpirations(date); err != nil {
		return err
	}
	if err := e.earlyClosureCheck(date); err != nil {
		return err
	}
	if err := e.opportunityScan(date, tradeable); err != nil {
		return err
	}

	e.series.Append(snapshots.DailySnapshot{
		Date:          date,
		Cash:          e.pf.Cash(),
		StockValue:    e.pf.StockValue(),
		OptionValue:   e.pf.OptionValue(),
		TotalValue:    e.pf.TotalValue(),
		OpenPositions: e.pf.OpenOptionCount(),
		AtRiskCapital: e.pf.AtRiskCapital(),
	})
	return nil
}

// gapCheck force-closes positions whose underlying gapped past the execution
// limit and returns the symbols still tradeable for new entries today. Every
// veto is recorded in the ledger with the observed gap percentage.
func (e *Engine) gapCheck(date time.Time) ([]string, error) {
	for _, lot := range e.pf.OptionLots() {
		bars, err := e.data.GetRecentBars(lot.Underlying, date, 2)
		if err != nil || len(bars) < 2 || !sameDay(bars[1].Date, date) {
			continue
		}
		mustClose, gap := e.gaps.ShouldCloseForGap(bars[1].Open, bars[0].Close)
		if !mustClose {
			continue
		}
		bid, ask := e.resolveCloseQuote(lot, date, bars[1].Open)
		reason := fmt.Sprintf("%s: gap %.1f%%", risk.ReasonExecutionGap, gap*100)
		if err := e.sim.CloseShort(lot, date, bid, ask, reason); err != nil {
			return nil, err
		}
	}

	tradeable, vetoed := e.gaps.FilterByGapRisk(e.symbols, date)
	// Walk the configured symbol list rather than the veto map so identical
	// runs produce identical ledgers
	for _, symbol := range e.symbols {
		gap, ok := vetoed[symbol]
		if !ok {
			continue
		}
		reason := fmt.Sprintf("%s: gap %.1f%%", risk.ReasonGapRisk, gap*100)
		if err := e.sim.RecordSkipped(date, symbol, domain.OptionKindPut, reason); err != nil {
			return nil, err
		}
	}
	return tradeable, nil
}

// processExpirations settles every lot expiring on or before the date.
// ITM puts assign shares, ITM calls get called away, everything else expires
// worthless. A missing bar defers settlement to the next day with data.
func (e *Engine) processExpirations(date time.Time) error {
	for _, lot := range e.pf.OptionLots() {
		if lot.Expiration.After(date) && !sameDay(lot.Expiration, date) {
			continue
		}

		bar, err := e.data.GetStockBar(lot.Underlying, date)
		if err != nil {
			if domain.IsMissingData(err) {
				e.log.Debug().
					Str("symbol", lot.Symbol).
					Time("date", date).
					Msg("No bar on expiration date, settlement deferred")
				continue
			}
			return err
		}
		spot := bar.Close

		switch {
		case lot.Kind == domain.OptionKindPut && spot < lot.Strike:
			err = e.sim.AssignPut(lot, date, spot)
		case lot.Kind == domain.OptionKindCall && spot > lot.Strike:
			err = e.sim.AssignCall(lot, date, spot)
		default:
			err = e.sim.ExpireWorthless(lot, date)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// earlyClosureCheck buys back shorts that have decayed to the profit target
func (e *Engine) earlyClosureCheck(date time.Time) error {
	if e.strategy.ProfitTargetPct <= 0 {
		return nil
	}

	for _, lot := range e.pf.OptionLots() {
		if !lot.Expiration.After(date) {
			continue
		}

		bar, err := e.data.GetStockBar(lot.Underlying, date)
		if err != nil {
			continue
		}

		hint := e.data.VolatilityHint(lot.Underlying, date)
		current := e.valuer.Value(lot, date, bar.Close, hint)
		if current <= 0 || current > lot.EntryPrice*(1-e.strategy.ProfitTargetPct) {
			continue
		}

		bid, ask := e.resolveCloseQuote(lot, date, bar.Close)
		if err := e.sim.CloseShort(lot, date, bid, ask, "profit_target"); err != nil {
			return err
		}
	}
	return nil
}

// opportunityScan sells new puts and covered calls where the wheel phase
// allows, gated by the risk checks. Symbols with missing data are skipped
// for the day without failing the run.
func (e *Engine) opportunityScan(date time.Time, tradeable []string) error {
	for _, symbol := range tradeable {
		bar, err := e.data.GetStockBar(symbol, date)
		if err != nil {
			continue
		}
		spot := bar.Close
		chain, err := e.data.GetChainSnapshot(symbol, date, spot)
		if err != nil {
			chain = nil
		}
		hint := e.data.VolatilityHint(symbol, date)

		switch {
		case e.wm.CanSellPut(symbol):
			if err := e.tryOpenPut(symbol, date, spot, chain, hint); err != nil {
				return err
			}
		case e.wm.CanSellCall(symbol):
			if err := e.tryOpenCall(symbol, date, spot, chain, hint); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) tryOpenPut(symbol string, date time.Time, spot float64, chain *domain.ChainSnapshot, hint float64) error {
	opp := e.scan.FindBestPut(symbol, spot, date, chain, hint, e.strategy)
	if opp == nil {
		return nil
	}

	contracts := e.contractsPerTrade()
	if ok, reason := e.gate.CheckPutOpen(e.pf, symbol, opp.Contract.Strike, contracts); !ok {
		return e.sim.RecordSkipped(date, symbol, domain.OptionKindPut, reason)
	}

	_, err := e.sim.OpenShort(opp, date, contracts)
	return err
}

func (e *Engine) tryOpenCall(symbol string, date time.Time, spot float64, chain *domain.ChainSnapshot, hint float64) error {
	stock := e.pf.StockLot(symbol)
	if stock == nil || stock.Shares < 100 {
		return nil
	}

	opp := e.scan.FindBestCall(symbol, spot, date, chain, stock.AvgCost, hint, e.strategy)
	if opp == nil {
		return nil
	}

	if ok, reason := e.gate.CheckCallOpen(e.pf); !ok {
		return e.sim.RecordSkipped(date, symbol, domain.OptionKindCall, reason)
	}

	// Never sell more calls than the shares cover
	contracts := e.contractsPerTrade()
	if covered := stock.Shares / 100; contracts > covered {
		contracts = covered
	}

	_, err := e.sim.OpenShort(opp, date, contracts)
	return err
}

// resolveCloseQuote finds a buyback market for a lot: historical quote first,
// then the chain, then a spread synthesized around the valuation estimate
func (e *Engine) resolveCloseQuote(lot *portfolio.OptionLot, date time.Time, spot float64) (bid, ask float64) {
	if lot.Symbol != "" {
		if quote, err := e.data.GetOptionQuote(lot.Symbol, date); err == nil && quote.Bid > 0 && quote.Ask > 0 {
			return quote.Bid, quote.Ask
		}
	}

	if chain, err := e.data.GetChainSnapshot(lot.Underlying, date, spot); err == nil {
		contracts := chain.Puts
		if lot.Kind == domain.OptionKindCall {
			contracts = chain.Calls
		}
		for _, c := range contracts {
			if c.Strike == lot.Strike && sameDay(c.Expiration, lot.Expiration) && c.Bid > 0 && c.Ask > 0 {
				return c.Bid, c.Ask
			}
		}
	}

	hint := e.data.VolatilityHint(lot.Underlying, date)
	est := e.valuer.Value(lot, date, spot, hint)
	if est < 0.01 {
		est = 0.01
	}
	return est * 0.98, est * 1.02
}

func (e *Engine) contractsPerTrade() int {
	if e.strategy.ContractsPerTrade > 0 {
		return e.strategy.ContractsPerTrade
	}
	return 1
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
