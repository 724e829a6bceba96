// Package snapshots provides the daily portfolio snapshot series and its
// sqlite persistence.
package snapshots

import (
	"time"

	"github.com/rs/zerolog"
)

// DailySnapshot captures end-of-day portfolio state. One snapshot per
// simulated trading day, append-only.
type DailySnapshot struct {
	Date          time.Time `json:"date"`
	RunID         string    `json:"run_id"`
	Cash          float64   `json:"cash"`
	StockValue    float64   `json:"stock_value"`
	OptionValue   float64   `json:"option_value"`
	TotalValue    float64   `json:"total_value"`
	OpenPositions int       `json:"open_positions"`
	AtRiskCapital float64   `json:"at_risk_capital"`
	ID            int64     `json:"id"`
}

// Series accumulates the ordered snapshot series for one run
type Series struct {
	runID     string
	snapshots []DailySnapshot
	log       zerolog.Logger
}

// NewSeries creates a series bound to a run ID
func NewSeries(runID string, log zerolog.Logger) *Series {
	return &Series{
		runID: runID,
		log:   log.With().Str("service", "snapshots").Logger(),
	}
}

// Append records one end-of-day snapshot
func (s *Series) Append(snap DailySnapshot) {
	snap.RunID = s.runID
	s.snapshots = append(s.snapshots, snap)
}

// Snapshots returns the series in date order
func (s *Series) Snapshots() []DailySnapshot {
	return s.snapshots
}

// TotalValues returns the total-value series, one entry per trading day
func (s *Series) TotalValues() []float64 {
	values := make([]float64, len(s.snapshots))
	for i, snap := range s.snapshots {
		values[i] = snap.TotalValue
	}
	return values
}

// Len returns the number of snapshots
func (s *Series) Len() int {
	return len(s.snapshots)
}
