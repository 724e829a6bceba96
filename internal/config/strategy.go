package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyConfig holds every strategy threshold consumed by the simulation.
// It is resolved once (defaults + YAML file + per-run overrides) before the
// engine is constructed and never mutates after a run starts.
type StrategyConfig struct {
	// Entry targeting
	PutTargetDTE  int     `yaml:"put_target_dte"`
	CallTargetDTE int     `yaml:"call_target_dte"`
	PutDeltaMin   float64 `yaml:"put_delta_min"`
	PutDeltaMax   float64 `yaml:"put_delta_max"`
	CallDeltaMin  float64 `yaml:"call_delta_min"`
	CallDeltaMax  float64 `yaml:"call_delta_max"`

	// Premium and liquidity filters
	MinPutPremium  float64 `yaml:"min_put_premium"`
	MinCallPremium float64 `yaml:"min_call_premium"`
	MinVolume      int64   `yaml:"min_volume"`
	MaxSpreadPct   float64 `yaml:"max_spread_pct"`

	// Position and cash limits
	MaxOpenPositions     int     `yaml:"max_open_positions"`
	CashReservePct       float64 `yaml:"cash_reserve_pct"`
	MinWorkingCash       float64 `yaml:"min_working_cash"`
	MaxExposurePerTicker float64 `yaml:"max_exposure_per_ticker"`
	ContractsPerTrade    int     `yaml:"contracts_per_trade"`

	// Gap risk
	MaxGapPct          float64 `yaml:"max_gap_pct"`           // veto new entries
	ExecutionMaxGapPct float64 `yaml:"execution_max_gap_pct"` // close existing positions
	GapATRMultiple     float64 `yaml:"gap_atr_multiple"`      // 0 disables ATR normalization

	// Exits
	ProfitTargetPct float64 `yaml:"profit_target_pct"` // buy back at this fraction of premium kept

	// Costs
	CommissionPerContract float64 `yaml:"commission_per_contract"`

	// Rates
	RiskFreeRate float64 `yaml:"risk_free_rate"`
}

// DefaultStrategy returns the baseline wheel strategy configuration
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		PutTargetDTE:          35,
		CallTargetDTE:         35,
		PutDeltaMin:           0.15,
		PutDeltaMax:           0.35,
		CallDeltaMin:          0.15,
		CallDeltaMax:          0.35,
		MinPutPremium:         0.30,
		MinCallPremium:        0.20,
		MinVolume:             10,
		MaxSpreadPct:          0.15,
		MaxOpenPositions:      10,
		CashReservePct:        0.10,
		MinWorkingCash:        2_500,
		MaxExposurePerTicker:  50_000,
		ContractsPerTrade:     1,
		MaxGapPct:             0.05,
		ExecutionMaxGapPct:    0.08,
		GapATRMultiple:        3.0,
		ProfitTargetPct:       0.50,
		CommissionPerContract: 1.00,
		RiskFreeRate:          0.04,
	}
}

// LoadStrategy reads a strategy YAML file over the defaults.
// An empty path returns the defaults unchanged.
func LoadStrategy(path string) (StrategyConfig, error) {
	cfg := DefaultStrategy()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read strategy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse strategy file: %w", err)
	}
	return cfg, nil
}

// StrategyOverrides holds optional per-run overrides merged over the loaded
// configuration. Nil fields keep the loaded value.
type StrategyOverrides struct {
	PutTargetDTE      *int
	CallTargetDTE     *int
	PutDeltaMin       *float64
	PutDeltaMax       *float64
	MinPutPremium     *float64
	MaxOpenPositions  *int
	ContractsPerTrade *int
	ProfitTargetPct   *float64
}

// Merge applies non-nil overrides and returns the merged configuration
func (c StrategyConfig) Merge(o StrategyOverrides) StrategyConfig {
	if o.PutTargetDTE != nil {
		c.PutTargetDTE = *o.PutTargetDTE
	}
	if o.CallTargetDTE != nil {
		c.CallTargetDTE = *o.CallTargetDTE
	}
	if o.PutDeltaMin != nil {
		c.PutDeltaMin = *o.PutDeltaMin
	}
	if o.PutDeltaMax != nil {
		c.PutDeltaMax = *o.PutDeltaMax
	}
	if o.MinPutPremium != nil {
		c.MinPutPremium = *o.MinPutPremium
	}
	if o.MaxOpenPositions != nil {
		c.MaxOpenPositions = *o.MaxOpenPositions
	}
	if o.ContractsPerTrade != nil {
		c.ContractsPerTrade = *o.ContractsPerTrade
	}
	if o.ProfitTargetPct != nil {
		c.ProfitTargetPct = *o.ProfitTargetPct
	}
	return c
}

// Validate checks the configuration for malformed thresholds.
// Validation failures are fatal and surface before the run starts.
func (c StrategyConfig) Validate() error {
	if c.PutTargetDTE <= 0 || c.CallTargetDTE <= 0 {
		return fmt.Errorf("target DTE must be positive (put=%d call=%d)", c.PutTargetDTE, c.CallTargetDTE)
	}
	if c.PutDeltaMin < 0 || c.PutDeltaMax > 1 || c.PutDeltaMin >= c.PutDeltaMax {
		return fmt.Errorf("put delta range invalid: [%.3f, %.3f]", c.PutDeltaMin, c.PutDeltaMax)
	}
	if c.CallDeltaMin < 0 || c.CallDeltaMax > 1 || c.CallDeltaMin >= c.CallDeltaMax {
		return fmt.Errorf("call delta range invalid: [%.3f, %.3f]", c.CallDeltaMin, c.CallDeltaMax)
	}
	if c.MinPutPremium < 0 || c.MinCallPremium < 0 {
		return fmt.Errorf("minimum premiums must be non-negative")
	}
	if c.MaxSpreadPct <= 0 || c.MaxSpreadPct > 1 {
		return fmt.Errorf("max_spread_pct must be in (0, 1], got %.3f", c.MaxSpreadPct)
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("max_open_positions must be positive, got %d", c.MaxOpenPositions)
	}
	if c.CashReservePct < 0 || c.CashReservePct >= 1 {
		return fmt.Errorf("cash_reserve_pct must be in [0, 1), got %.3f", c.CashReservePct)
	}
	if c.MaxExposurePerTicker <= 0 {
		return fmt.Errorf("max_exposure_per_ticker must be positive, got %.2f", c.MaxExposurePerTicker)
	}
	if c.ContractsPerTrade <= 0 {
		return fmt.Errorf("contracts_per_trade must be positive, got %d", c.ContractsPerTrade)
	}
	if c.MaxGapPct <= 0 || c.ExecutionMaxGapPct <= 0 {
		return fmt.Errorf("gap thresholds must be positive (entry=%.3f execution=%.3f)", c.MaxGapPct, c.ExecutionMaxGapPct)
	}
	if c.ProfitTargetPct <= 0 || c.ProfitTargetPct > 1 {
		return fmt.Errorf("profit_target_pct must be in (0, 1], got %.3f", c.ProfitTargetPct)
	}
	if c.CommissionPerContract < 0 {
		return fmt.Errorf("commission_per_contract must be non-negative, got %.2f", c.CommissionPerContract)
	}
	return nil
}
