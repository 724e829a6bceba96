// Package runs persists backtest run records and their final metrics.
package runs

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Run is one persisted backtest run
type Run struct {
	CreatedAt   time.Time `json:"created_at"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	ID          string    `json:"id"`
	Symbols     []string  `json:"symbols"`
	Metrics     string    `json:"metrics"` // JSON blob
	InitialCash float64   `json:"initial_cash"`
}

const runsColumns = `id, start_date, end_date, symbols, initial_cash, metrics, created_at`

// Repository handles run persistence in results.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Create inserts a run record. Metrics may be empty at creation and filled in
// later via SetMetrics once the run completes.
func (r *Repository) Create(run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (`+runsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartDate.Format("2006-01-02"),
		run.EndDate.Format("2006-01-02"),
		strings.Join(run.Symbols, ","),
		run.InitialCash,
		run.Metrics,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SetMetrics stores the final metrics JSON for a completed run
func (r *Repository) SetMetrics(runID, metricsJSON string) error {
	result, err := r.db.Exec(`UPDATE runs SET metrics = ? WHERE id = ?`, metricsJSON, runID)
	if err != nil {
		return fmt.Errorf("failed to set run metrics: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Get returns one run by ID
func (r *Repository) Get(runID string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runsColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetAll returns every run, most recent first
func (r *Repository) GetAll() ([]Run, error) {
	rows, err := r.db.Query(`SELECT ` + runsColumns + ` FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var all []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		all = append(all, *run)
	}
	return all, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var run Run
	var start, end, symbols string
	var metrics sql.NullString
	var createdAt int64

	if err := row.Scan(&run.ID, &start, &end, &symbols, &run.InitialCash, &metrics, &createdAt); err != nil {
		return nil, err
	}

	run.StartDate, _ = time.Parse("2006-01-02", start)
	run.EndDate, _ = time.Parse("2006-01-02", end)
	if symbols != "" {
		run.Symbols = strings.Split(symbols, ",")
	}
	run.Metrics = metrics.String
	run.CreatedAt = time.Unix(createdAt, 0)
	return &run, nil
}
