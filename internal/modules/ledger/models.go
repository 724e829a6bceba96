package ledger

import (
	"fmt"
	"time"

	"github.com/aristath/wheelhouse/internal/domain"
)

// Trade is one append-only ledger entry. Entries are never mutated after
// recording; the full ledger plus the snapshot series are the run's only
// outputs.
type Trade struct {
	Date        time.Time          `json:"date"`
	RunID       string             `json:"run_id"`
	Action      domain.TradeAction `json:"action"`
	Symbol      string             `json:"symbol"` // contract identifier for options
	Underlying  string             `json:"underlying"`
	Kind        domain.OptionKind  `json:"kind"`
	Quantity    int                `json:"quantity"`
	Strike      float64            `json:"strike"`
	Bid         float64            `json:"bid"`
	Ask         float64            `json:"ask"`
	Mid         float64            `json:"mid"`
	Fill        float64            `json:"fill"`
	Commission  float64            `json:"commission"`
	Slippage    float64            `json:"slippage"`
	RealizedPnL *float64           `json:"realized_pnl,omitempty"`
	Reason      string             `json:"reason"`
	ID          int64              `json:"id"`
}

// Validate checks the entry before persistence
func (t Trade) Validate() error {
	if t.Underlying == "" {
		return fmt.Errorf("trade underlying is required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("trade date is required")
	}
	switch t.Action {
	case domain.TradeActionOpen, domain.TradeActionClose, domain.TradeActionAssignment, domain.TradeActionSkipped:
	default:
		return fmt.Errorf("invalid trade action %q", t.Action)
	}
	if t.Commission < 0 || t.Slippage < 0 {
		return fmt.Errorf("commission and slippage must be non-negative")
	}
	return nil
}
