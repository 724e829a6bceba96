package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const snapshotColumns = `id, run_id, date, cash, stock_value, option_value, total_value, open_positions, at_risk_capital`

// Repository handles snapshot persistence in results.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// CreateBatch inserts a full run's snapshot series inside one transaction
func (r *Repository) CreateBatch(snaps []DailySnapshot) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_snapshots
		(run_id, date, cash, stock_value, option_value, total_value, open_positions, at_risk_capital, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, snap := range snaps {
		if _, err := stmt.Exec(
			snap.RunID,
			snap.Date.Format("2006-01-02"),
			snap.Cash,
			snap.StockValue,
			snap.OptionValue,
			snap.TotalValue,
			snap.OpenPositions,
			snap.AtRiskCapital,
			now,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}

	r.log.Info().Int("snapshots", len(snaps)).Msg("Snapshot series persisted")
	return nil
}

// GetByRun retrieves the snapshot series for a run in date order
func (r *Repository) GetByRun(runID string) ([]DailySnapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM daily_snapshots WHERE run_id = ? ORDER BY date`, snapshotColumns)

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []DailySnapshot
	for rows.Next() {
		var snap DailySnapshot
		var dateStr string
		if err := rows.Scan(
			&snap.ID, &snap.RunID, &dateStr, &snap.Cash, &snap.StockValue,
			&snap.OptionValue, &snap.TotalValue, &snap.OpenPositions, &snap.AtRiskCapital,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Date, _ = time.Parse("2006-01-02", dateStr)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snaps, nil
}
