package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/domain"
)

// tradesColumns is the list of columns for the trades table.
// Used to avoid SELECT * which can break when the schema changes.
// Column order must match scanTrade().
const tradesColumns = `id, run_id, date, action, symbol, underlying, kind, quantity, strike, bid, ask, mid, fill, commission, slippage, realized_pnl, reason`

// Repository handles trade persistence in results.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new trade repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Create inserts a single trade record
func (r *Repository) Create(trade Trade) error {
	if err := trade.Validate(); err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	query := `
		INSERT INTO trades
		(run_id, date, action, symbol, underlying, kind, quantity, strike,
		 bid, ask, mid, fill, commission, slippage, realized_pnl, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var pnl sql.NullFloat64
	if trade.RealizedPnL != nil {
		pnl = sql.NullFloat64{Float64: *trade.RealizedPnL, Valid: true}
	}

	_, err := r.db.Exec(query,
		trade.RunID,
		trade.Date.Format("2006-01-02"),
		string(trade.Action),
		trade.Symbol,
		trade.Underlying,
		string(trade.Kind),
		trade.Quantity,
		trade.Strike,
		trade.Bid,
		trade.Ask,
		trade.Mid,
		trade.Fill,
		trade.Commission,
		trade.Slippage,
		pnl,
		trade.Reason,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// CreateBatch inserts a full run ledger inside one transaction
func (r *Repository) CreateBatch(trades []Trade) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trades
		(run_id, date, action, symbol, underlying, kind, quantity, strike,
		 bid, ask, mid, fill, commission, slippage, realized_pnl, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, trade := range trades {
		if err := trade.Validate(); err != nil {
			return fmt.Errorf("failed to persist ledger: %w", err)
		}
		var pnl sql.NullFloat64
		if trade.RealizedPnL != nil {
			pnl = sql.NullFloat64{Float64: *trade.RealizedPnL, Valid: true}
		}
		if _, err := stmt.Exec(
			trade.RunID,
			trade.Date.Format("2006-01-02"),
			string(trade.Action),
			trade.Symbol,
			trade.Underlying,
			string(trade.Kind),
			trade.Quantity,
			trade.Strike,
			trade.Bid,
			trade.Ask,
			trade.Mid,
			trade.Fill,
			trade.Commission,
			trade.Slippage,
			pnl,
			trade.Reason,
			now,
		); err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger: %w", err)
	}

	r.log.Info().Int("trades", len(trades)).Msg("Ledger persisted")
	return nil
}

// GetByRun retrieves every trade for a run in execution order
func (r *Repository) GetByRun(runID string) ([]Trade, error) {
	query := fmt.Sprintf(`SELECT %s FROM trades WHERE run_id = ? ORDER BY id`, tradesColumns)

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetAllInRange retrieves a run's trades within a date range (inclusive,
// YYYY-MM-DD format)
func (r *Repository) GetAllInRange(runID, startDate, endDate string) ([]Trade, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM trades WHERE run_id = ? AND date >= ? AND date <= ? ORDER BY id`,
		tradesColumns,
	)

	rows, err := r.db.Query(query, runID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades in range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]Trade, error) {
	var trades []Trade
	for rows.Next() {
		var t Trade
		var dateStr, action, kind string
		var pnl sql.NullFloat64
		if err := rows.Scan(
			&t.ID, &t.RunID, &dateStr, &action, &t.Symbol, &t.Underlying, &kind,
			&t.Quantity, &t.Strike, &t.Bid, &t.Ask, &t.Mid, &t.Fill,
			&t.Commission, &t.Slippage, &pnl, &t.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Date, _ = time.Parse("2006-01-02", dateStr)
		t.Action = domain.TradeAction(action)
		t.Kind = domain.OptionKind(kind)
		if pnl.Valid {
			v := pnl.Float64
			t.RealizedPnL = &v
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}
