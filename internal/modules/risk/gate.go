// Package risk holds the pre-trade vetoes: position/cash caps, per-symbol
// exposure limits, and gap checks. Every veto carries a reason code so the
// engine can record a skipped ledger entry instead of failing silently.
package risk

import (
	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/config"
	"github.com/aristath/wheelhouse/internal/modules/portfolio"
)

// Veto reason codes recorded in the ledger when a trade is rejected
const (
	ReasonMaxPositions     = "max_positions"
	ReasonInsufficientCash = "insufficient_cash"
	ReasonExposureLimit    = "exposure_limit"
	ReasonGapRisk          = "gap_risk"
	ReasonExecutionGap     = "execution_gap_exceeded"
)

// Gate evaluates position, cash and exposure caps before a trade opens
type Gate struct {
	cfg config.StrategyConfig
	log zerolog.Logger
}

// NewGate creates a new risk gate
func NewGate(cfg config.StrategyConfig, log zerolog.Logger) *Gate {
	return &Gate{
		cfg: cfg,
		log: log.With().Str("service", "risk").Logger(),
	}
}

// CheckPutOpen approves or vetoes a new cash-secured put. The put secures
// strike × 100 × contracts of cash, so the cash check subtracts that amount
// from the post-reserve balance.
func (g *Gate) CheckPutOpen(pf *portfolio.Portfolio, symbol string, strike float64, contracts int) (bool, string) {
	if pf.OpenOptionCount() >= g.cfg.MaxOpenPositions {
		return false, ReasonMaxPositions
	}

	notional := strike * 100 * float64(contracts)
	available := pf.Cash() * (1 - g.cfg.CashReservePct)
	if available-notional < g.cfg.MinWorkingCash {
		g.log.Debug().
			Str("symbol", symbol).
			Float64("available", available).
			Float64("notional", notional).
			Msg("Put vetoed, insufficient cash")
		return false, ReasonInsufficientCash
	}

	if pf.SymbolExposure(symbol)+notional > g.cfg.MaxExposurePerTicker {
		return false, ReasonExposureLimit
	}

	return true, ""
}

// CheckCallOpen approves or vetoes a new covered call. The shares already
// cover the obligation, so only the position cap applies.
func (g *Gate) CheckCallOpen(pf *portfolio.Portfolio) (bool, string) {
	if pf.OpenOptionCount() >= g.cfg.MaxOpenPositions {
		return false, ReasonMaxPositions
	}
	return true, ""
}
