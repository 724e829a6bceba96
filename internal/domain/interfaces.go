package domain

import "time"

// MarketDataProvider defines historical market data lookups consumed by the
// simulation. Implementations are synchronous and expected to do their own
// caching; the engine calls these once per (symbol, date) at most.
// This interface abstracts away the storage backend (sqlite, fixtures in tests)
type MarketDataProvider interface {
	// GetStockBar returns the daily bar for a symbol on a date
	// Returns ErrMissingData when no bar exists for that date
	GetStockBar(symbol string, date time.Time) (*StockBar, error)

	// GetChainSnapshot returns the option chain for a symbol on a date
	// Returns ErrMissingData when no chain was captured for that date
	GetChainSnapshot(symbol string, date time.Time, spot float64) (*ChainSnapshot, error)

	// GetOptionQuote returns the historical quote for one specific contract
	// Returns ErrMissingData when the contract has no quote for that date
	GetOptionQuote(optionSymbol string, date time.Time) (*OptionQuote, error)

	// GetRecentBars returns up to n daily bars ending at date, oldest first
	GetRecentBars(symbol string, date time.Time, n int) ([]StockBar, error)

	// VolatilityHint returns an annualized volatility estimate for a symbol
	// as of a date, or 0 when no estimate is available
	VolatilityHint(symbol string, date time.Time) float64
}

// GreeksCalculator computes option sensitivities from market inputs
// Used for valuation fallbacks and for contracts whose chain data carries no delta
type GreeksCalculator interface {
	Greeks(spot, strike, timeToExpiryYears, volatility, riskFreeRate float64, kind OptionKind) Greeks
}
