// Package ledger provides the append-only trade ledger for a simulation run
// and its sqlite persistence.
package ledger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Recorder accumulates the ordered trade ledger for one run in memory.
// Ordering matches execution order; entries are append-only.
type Recorder struct {
	runID  string
	trades []Trade
	log    zerolog.Logger
}

// NewRecorder creates a recorder bound to a run ID
func NewRecorder(runID string, log zerolog.Logger) *Recorder {
	return &Recorder{
		runID: runID,
		log:   log.With().Str("service", "ledger").Logger(),
	}
}

// Record validates and appends one ledger entry
func (r *Recorder) Record(trade Trade) error {
	trade.RunID = r.runID
	if err := trade.Validate(); err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	r.trades = append(r.trades, trade)
	r.log.Debug().
		Str("action", string(trade.Action)).
		Str("symbol", trade.Symbol).
		Str("underlying", trade.Underlying).
		Float64("fill", trade.Fill).
		Str("reason", trade.Reason).
		Msg("Trade recorded")
	return nil
}

// Trades returns the ledger in execution order
func (r *Recorder) Trades() []Trade {
	return r.trades
}

// Len returns the number of recorded entries
func (r *Recorder) Len() int {
	return len(r.trades)
}
