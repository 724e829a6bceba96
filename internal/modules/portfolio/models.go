package portfolio

import (
	"fmt"
	"time"

	"github.com/aristath/wheelhouse/internal/domain"
)

// StockLot represents shares of one underlying held at a weighted-average cost
type StockLot struct {
	AcquiredAt time.Time `json:"acquired_at"`
	Symbol     string    `json:"symbol"`
	Shares     int       `json:"shares"`
	AvgCost    float64   `json:"avg_cost"`
	LastPrice  float64   `json:"last_price"`
	LastValue  float64   `json:"last_value"`
}

// MarketValue returns the last-marked value of the lot
func (l *StockLot) MarketValue() float64 {
	return l.LastValue
}

// OptionLot represents a short option position. Quantity is always negative in
// this strategy; the invariant is validated at construction.
type OptionLot struct {
	Expiration  time.Time         `json:"expiration"`
	EntryDate   time.Time         `json:"entry_date"`
	Symbol      string            `json:"symbol"` // contract identifier
	Underlying  string            `json:"underlying"`
	Kind        domain.OptionKind `json:"kind"`
	Strike      float64           `json:"strike"`
	Quantity    int               `json:"quantity"` // negative (short)
	EntryPrice  float64           `json:"entry_price"`
	EntryBid    float64           `json:"entry_bid"`
	EntryAsk    float64           `json:"entry_ask"`
	EntryVolume int64             `json:"entry_volume"`
	LastPrice   float64           `json:"last_price"`
	LastValue   float64           `json:"last_value"`
}

// NewOptionLot validates and creates a short option lot
func NewOptionLot(symbol, underlying string, kind domain.OptionKind, strike float64, expiration time.Time, quantity int, entryPrice float64, entryDate time.Time) (*OptionLot, error) {
	if quantity >= 0 {
		return nil, fmt.Errorf("option lot quantity must be negative (short only), got %d", quantity)
	}
	if strike <= 0 {
		return nil, fmt.Errorf("option lot strike must be positive, got %.2f", strike)
	}
	if kind != domain.OptionKindPut && kind != domain.OptionKindCall {
		return nil, fmt.Errorf("invalid option kind %q", kind)
	}

	return &OptionLot{
		Symbol:     symbol,
		Underlying: underlying,
		Kind:       kind,
		Strike:     strike,
		Expiration: expiration,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		EntryDate:  entryDate,
		LastPrice:  entryPrice,
		LastValue:  entryPrice * 100 * float64(quantity),
	}, nil
}

// Contracts returns the absolute number of contracts in the lot
func (l *OptionLot) Contracts() int {
	if l.Quantity < 0 {
		return -l.Quantity
	}
	return l.Quantity
}

// Notional returns the cash secured by the lot (strike × 100 × contracts)
func (l *OptionLot) Notional() float64 {
	return l.Strike * 100 * float64(l.Contracts())
}

// MarketValue returns the signed last-marked value of the lot
func (l *OptionLot) MarketValue() float64 {
	return l.LastValue
}
