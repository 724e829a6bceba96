// Package portfolio owns the simulated cash balance, stock lots and option
// lots. It is mutated only by the execution simulator and expiration handling;
// everything else reads aggregates.
package portfolio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/domain"
)

// OptionValuer prices an option lot as of a date.
// Implemented by the valuation module; declared here to avoid an import cycle.
type OptionValuer interface {
	Value(lot *OptionLot, date time.Time, spot, volatilityHint float64) float64
}

// Portfolio holds the cash ledger and open lots for one simulation run
type Portfolio struct {
	cash    float64
	stocks  []*StockLot
	options []*OptionLot
	log     zerolog.Logger
}

// New creates a portfolio seeded with initial cash
func New(initialCash float64, log zerolog.Logger) *Portfolio {
	return &Portfolio{
		cash: initialCash,
		log:  log.With().Str("service", "portfolio").Logger(),
	}
}

// Cash returns the current cash balance. The balance is signed; no floor is
// enforced here (the risk gate's reserve check is the only brake).
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// Credit increases the cash balance
func (p *Portfolio) Credit(amount float64) {
	p.cash += amount
}

// Debit decreases the cash balance
func (p *Portfolio) Debit(amount float64) {
	p.cash -= amount
	if p.cash < 0 {
		p.log.Warn().Float64("cash", p.cash).Msg("Cash balance is negative")
	}
}

// AddStockLot adds shares, merging into an existing lot for the symbol with
// quantity-weighted average cost
func (p *Portfolio) AddStockLot(symbol string, shares int, costBasis float64, date time.Time) error {
	if shares <= 0 {
		return fmt.Errorf("share count must be positive, got %d", shares)
	}

	for _, lot := range p.stocks {
		if lot.Symbol == symbol {
			total := lot.Shares + shares
			lot.AvgCost = (float64(lot.Shares)*lot.AvgCost + float64(shares)*costBasis) / float64(total)
			lot.Shares = total
			return nil
		}
	}

	p.stocks = append(p.stocks, &StockLot{
		Symbol:     symbol,
		Shares:     shares,
		AvgCost:    costBasis,
		AcquiredAt: date,
		LastPrice:  costBasis,
		LastValue:  float64(shares) * costBasis,
	})
	return nil
}

// RemoveStockShares removes shares from the symbol's lot, deleting the lot
// when it reaches zero. Requesting more shares than held is a caller contract
// violation and returns an error without mutating anything.
func (p *Portfolio) RemoveStockShares(symbol string, shares int) error {
	for i, lot := range p.stocks {
		if lot.Symbol != symbol {
			continue
		}
		if shares > lot.Shares {
			return fmt.Errorf("cannot remove %d shares of %s, only %d held", shares, symbol, lot.Shares)
		}
		lot.Shares -= shares
		lot.LastValue = float64(lot.Shares) * lot.LastPrice
		if lot.Shares == 0 {
			p.stocks = append(p.stocks[:i], p.stocks[i+1:]...)
		}
		return nil
	}
	return fmt.Errorf("no stock lot for %s", symbol)
}

// StockLot returns the lot for a symbol, or nil
func (p *Portfolio) StockLot(symbol string) *StockLot {
	for _, lot := range p.stocks {
		if lot.Symbol == symbol {
			return lot
		}
	}
	return nil
}

// StockLots returns the held stock lots in acquisition order
func (p *Portfolio) StockLots() []*StockLot {
	return p.stocks
}

// AddOptionLot registers a new short option lot
func (p *Portfolio) AddOptionLot(lot *OptionLot) {
	p.options = append(p.options, lot)
}

// RemoveOptionLot removes a lot by identity
func (p *Portfolio) RemoveOptionLot(target *OptionLot) error {
	for i, lot := range p.options {
		if lot == target {
			p.options = append(p.options[:i], p.options[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("option lot %s not found", target.Symbol)
}

// OptionLots returns a copy of the open option lots, entry order preserved.
// Callers iterate the copy while mutating the portfolio (closures, expiry).
func (p *Portfolio) OptionLots() []*OptionLot {
	lots := make([]*OptionLot, len(p.options))
	copy(lots, p.options)
	return lots
}

// OptionLotsFor returns the open lots on one underlying
func (p *Portfolio) OptionLotsFor(underlying string) []*OptionLot {
	var lots []*OptionLot
	for _, lot := range p.options {
		if lot.Underlying == underlying {
			lots = append(lots, lot)
		}
	}
	return lots
}

// OpenOptionCount returns the number of open option lots
func (p *Portfolio) OpenOptionCount() int {
	return len(p.options)
}

// MarkToMarket refreshes last-marked prices for every lot. Symbols without a
// bar for the date keep their previous mark; a data gap never fails the day.
func (p *Portfolio) MarkToMarket(date time.Time, data domain.MarketDataProvider, valuer OptionValuer) {
	for _, lot := range p.stocks {
		bar, err := data.GetStockBar(lot.Symbol, date)
		if err != nil {
			p.log.Debug().Str("symbol", lot.Symbol).Str("date", date.Format("2006-01-02")).
				Msg("No bar for stock lot, keeping previous mark")
			continue
		}
		lot.LastPrice = bar.Close
		lot.LastValue = float64(lot.Shares) * bar.Close
	}

	for _, lot := range p.options {
		bar, err := data.GetStockBar(lot.Underlying, date)
		if err != nil {
			p.log.Debug().Str("symbol", lot.Symbol).Str("date", date.Format("2006-01-02")).
				Msg("No spot for option lot, keeping previous mark")
			continue
		}
		price := valuer.Value(lot, date, bar.Close, data.VolatilityHint(lot.Underlying, date))
		lot.LastPrice = price
		lot.LastValue = price * 100 * float64(lot.Quantity)
	}
}

// StockValue returns the summed market value of all stock lots
func (p *Portfolio) StockValue() float64 {
	total := 0.0
	for _, lot := range p.stocks {
		total += lot.LastValue
	}
	return total
}

// OptionValue returns the summed signed market value of all option lots
func (p *Portfolio) OptionValue() float64 {
	total := 0.0
	for _, lot := range p.options {
		total += lot.LastValue
	}
	return total
}

// TotalValue returns cash + stock value + option value
func (p *Portfolio) TotalValue() float64 {
	return p.cash + p.StockValue() + p.OptionValue()
}

// SymbolExposure returns current stock value plus short-put notional on one
// underlying. Used by the risk gate's per-ticker exposure cap.
func (p *Portfolio) SymbolExposure(symbol string) float64 {
	exposure := 0.0
	if lot := p.StockLot(symbol); lot != nil {
		exposure += lot.LastValue
	}
	for _, lot := range p.options {
		if lot.Underlying == symbol && lot.Kind == domain.OptionKindPut {
			exposure += lot.Notional()
		}
	}
	return exposure
}

// AtRiskCapital returns cash secured for open puts plus stock market value
func (p *Portfolio) AtRiskCapital() float64 {
	atRisk := p.StockValue()
	for _, lot := range p.options {
		if lot.Kind == domain.OptionKindPut {
			atRisk += lot.Notional()
		}
	}
	return atRisk
}
