// Package domain provides core domain models and types.
package domain

import "time"

// OptionKind represents the side of an option contract
type OptionKind string

const (
	OptionKindPut  OptionKind = "put"
	OptionKindCall OptionKind = "call"
)

// TradeAction represents the kind of ledger entry a trade produced
type TradeAction string

const (
	// TradeActionOpen represents opening a new short option position
	TradeActionOpen TradeAction = "open"
	// TradeActionClose represents closing a position (buyback or worthless expiry)
	TradeActionClose TradeAction = "close"
	// TradeActionAssignment represents exercise/assignment at expiration
	TradeActionAssignment TradeAction = "assignment"
	// TradeActionSkipped represents a candidate trade vetoed before execution
	TradeActionSkipped TradeAction = "skipped"
)

// StockBar represents one daily OHLCV bar for an underlying
type StockBar struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// OptionContract represents a single contract inside a chain snapshot
type OptionContract struct {
	Expiration time.Time  `json:"expiration"`
	Symbol     string     `json:"symbol"` // OCC-style contract identifier, may be empty
	Underlying string     `json:"underlying"`
	Kind       OptionKind `json:"kind"`
	Strike     float64    `json:"strike"`
	Bid        float64    `json:"bid"`
	Ask        float64    `json:"ask"`
	Volume     int64      `json:"volume"`
	Delta      *float64   `json:"delta,omitempty"` // absent when the source carries no greeks
}

// Mid returns the bid/ask midpoint, or 0 when the contract has no two-sided market
func (c OptionContract) Mid() float64 {
	if c.Bid <= 0 || c.Ask <= 0 {
		return 0
	}
	return (c.Bid + c.Ask) / 2
}

// ChainSnapshot represents an option chain for one underlying on one date
type ChainSnapshot struct {
	Date   time.Time        `json:"date"`
	Symbol string           `json:"symbol"`
	Spot   float64          `json:"spot"`
	Puts   []OptionContract `json:"puts"`
	Calls  []OptionContract `json:"calls"`
}

// OptionQuote represents a historical quote for one specific contract
type OptionQuote struct {
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume int64   `json:"volume"`
}

// Greeks holds option sensitivity values
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}
