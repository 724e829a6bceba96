// Package historical provides the sqlite-backed market data provider.
// All lookups are memoized per (symbol, date) for the duration of a run;
// entries are written once and never invalidated mid-run.
package historical

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/pkg/formulas"
)

const volatilityWindow = 30 // daily returns per volatility estimate

// Provider reads bars, chains and quotes from history.db
type Provider struct {
	db  *sql.DB
	log zerolog.Logger

	// Per-run memo tables. A nil value records a confirmed miss so repeated
	// lookups for sparse data do not hit the database again.
	bars   map[string]*domain.StockBar
	chains map[string]*domain.ChainSnapshot
	quotes map[string]*domain.OptionQuote
	vols   map[string]float64
}

// Compile-time check that Provider implements domain.MarketDataProvider
var _ domain.MarketDataProvider = (*Provider)(nil)

// NewProvider creates a new historical data provider
func NewProvider(db *sql.DB, log zerolog.Logger) *Provider {
	return &Provider{
		db:     db,
		log:    log.With().Str("service", "historical").Logger(),
		bars:   make(map[string]*domain.StockBar),
		chains: make(map[string]*domain.ChainSnapshot),
		quotes: make(map[string]*domain.OptionQuote),
		vols:   make(map[string]float64),
	}
}

func cacheKey(symbol string, date time.Time) string {
	return symbol + "|" + date.Format("2006-01-02")
}

// GetStockBar returns the daily bar for a symbol on a date
func (p *Provider) GetStockBar(symbol string, date time.Time) (*domain.StockBar, error) {
	key := cacheKey(symbol, date)
	if bar, ok := p.bars[key]; ok {
		if bar == nil {
			return nil, domain.ErrMissingData
		}
		return bar, nil
	}

	row := p.db.QueryRow(
		`SELECT open, high, low, close, volume FROM daily_bars WHERE symbol = ? AND date = ?`,
		symbol, date.Format("2006-01-02"),
	)

	bar := domain.StockBar{Symbol: symbol, Date: date}
	err := row.Scan(&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err == sql.ErrNoRows {
		p.bars[key] = nil
		return nil, domain.ErrMissingData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query daily bar: %w", err)
	}

	p.bars[key] = &bar
	return &bar, nil
}

// GetChainSnapshot returns the option chain for a symbol on a date.
// Chains are stored as msgpack blobs, one per (symbol, date).
func (p *Provider) GetChainSnapshot(symbol string, date time.Time, spot float64) (*domain.ChainSnapshot, error) {
	key := cacheKey(symbol, date)
	if chain, ok := p.chains[key]; ok {
		if chain == nil {
			return nil, domain.ErrMissingData
		}
		return chain, nil
	}

	row := p.db.QueryRow(
		`SELECT data FROM option_chains WHERE symbol = ? AND date = ?`,
		symbol, date.Format("2006-01-02"),
	)

	var blob []byte
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		p.chains[key] = nil
		return nil, domain.ErrMissingData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query option chain: %w", err)
	}

	var chain domain.ChainSnapshot
	if err := msgpack.Unmarshal(blob, &chain); err != nil {
		return nil, fmt.Errorf("failed to decode option chain for %s: %w", key, err)
	}

	chain.Symbol = symbol
	chain.Date = date
	if chain.Spot == 0 {
		chain.Spot = spot
	}

	p.chains[key] = &chain
	return &chain, nil
}

// GetOptionQuote returns the historical quote for one specific contract
func (p *Provider) GetOptionQuote(optionSymbol string, date time.Time) (*domain.OptionQuote, error) {
	key := cacheKey(optionSymbol, date)
	if quote, ok := p.quotes[key]; ok {
		if quote == nil {
			return nil, domain.ErrMissingData
		}
		return quote, nil
	}

	row := p.db.QueryRow(
		`SELECT bid, ask, last, volume FROM option_quotes WHERE option_symbol = ? AND date = ?`,
		optionSymbol, date.Format("2006-01-02"),
	)

	var quote domain.OptionQuote
	err := row.Scan(&quote.Bid, &quote.Ask, &quote.Last, &quote.Volume)
	if err == sql.ErrNoRows {
		p.quotes[key] = nil
		return nil, domain.ErrMissingData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query option quote: %w", err)
	}

	p.quotes[key] = &quote
	return &quote, nil
}

// GetRecentBars returns up to n daily bars ending at date, oldest first
func (p *Provider) GetRecentBars(symbol string, date time.Time, n int) ([]domain.StockBar, error) {
	rows, err := p.db.Query(
		`SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND date <= ?
		ORDER BY date DESC
		LIMIT ?`,
		symbol, date.Format("2006-01-02"), n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.StockBar
	for rows.Next() {
		var bar domain.StockBar
		var dateStr string
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bar.Symbol = symbol
		bar.Date, _ = time.Parse("2006-01-02", dateStr)
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	// Reverse to oldest-first
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// VolatilityHint returns the 30-day annualized close-to-close volatility for a
// symbol as of a date, or 0 when there is not enough history to estimate one.
func (p *Provider) VolatilityHint(symbol string, date time.Time) float64 {
	key := cacheKey(symbol, date)
	if vol, ok := p.vols[key]; ok {
		return vol
	}

	bars, err := p.GetRecentBars(symbol, date, volatilityWindow+1)
	if err != nil || len(bars) < volatilityWindow+1 {
		p.vols[key] = 0
		return 0
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	vol := formulas.RollingVolatility(closes, volatilityWindow)
	if vol == nil {
		p.vols[key] = 0
		return 0
	}

	p.vols[key] = *vol
	return *vol
}
