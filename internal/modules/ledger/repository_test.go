package ledger

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wheelhouse/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			action TEXT NOT NULL,
			symbol TEXT NOT NULL,
			underlying TEXT NOT NULL,
			kind TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			strike REAL NOT NULL DEFAULT 0,
			bid REAL NOT NULL DEFAULT 0,
			ask REAL NOT NULL DEFAULT 0,
			mid REAL NOT NULL DEFAULT 0,
			fill REAL NOT NULL DEFAULT 0,
			commission REAL NOT NULL DEFAULT 0,
			slippage REAL NOT NULL DEFAULT 0,
			realized_pnl REAL,
			reason TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func sampleTrade(runID string, action domain.TradeAction) Trade {
	return Trade{
		RunID:      runID,
		Date:       time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Action:     action,
		Symbol:     "AAPL_P95",
		Underlying: "AAPL",
		Kind:       domain.OptionKindPut,
		Quantity:   -1,
		Strike:     95,
		Bid:        2.00,
		Ask:        2.20,
		Mid:        2.10,
		Fill:       2.05,
		Commission: 1.00,
		Slippage:   0.10,
		Reason:     "best quality candidate",
	}
}

func TestCreateAndGetByRun(t *testing.T) {
	db := newTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	repo := NewRepository(db, log)

	require.NoError(t, repo.Create(sampleTrade("run-1", domain.TradeActionOpen)))

	trades, err := repo.GetByRun("run-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeActionOpen, trades[0].Action)
	assert.Equal(t, 95.0, trades[0].Strike)
	assert.Nil(t, trades[0].RealizedPnL)

	// Other runs are isolated
	trades, err = repo.GetByRun("run-2")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestCreateValidates(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))

	bad := sampleTrade("run-1", "bogus")
	assert.Error(t, repo.Create(bad))

	missing := sampleTrade("run-1", domain.TradeActionOpen)
	missing.Underlying = ""
	assert.Error(t, repo.Create(missing))
}

func TestCreateBatchRoundTripsRealizedPnL(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))

	pnl := 500.0
	closed := sampleTrade("run-1", domain.TradeActionAssignment)
	closed.RealizedPnL = &pnl

	require.NoError(t, repo.CreateBatch([]Trade{
		sampleTrade("run-1", domain.TradeActionOpen),
		closed,
	}))

	trades, err := repo.GetByRun("run-1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.NotNil(t, trades[1].RealizedPnL)
	assert.Equal(t, 500.0, *trades[1].RealizedPnL)
}

func TestGetAllInRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))

	early := sampleTrade("run-1", domain.TradeActionOpen)
	early.Date = time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	late := sampleTrade("run-1", domain.TradeActionClose)
	late.Date = time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateBatch([]Trade{early, late}))

	trades, err := repo.GetAllInRange("run-1", "2024-01-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeActionOpen, trades[0].Action)
}

func TestRecorderAppendsInOrder(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	rec := NewRecorder("run-9", log)

	require.NoError(t, rec.Record(sampleTrade("", domain.TradeActionOpen)))
	require.NoError(t, rec.Record(sampleTrade("", domain.TradeActionClose)))

	trades := rec.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, "run-9", trades[0].RunID) // recorder stamps the run ID
	assert.Equal(t, domain.TradeActionOpen, trades[0].Action)
	assert.Equal(t, domain.TradeActionClose, trades[1].Action)
	assert.Equal(t, 2, rec.Len())
}

func TestRecorderRejectsInvalid(t *testing.T) {
	rec := NewRecorder("run-9", zerolog.New(nil).Level(zerolog.Disabled))
	bad := sampleTrade("", domain.TradeActionOpen)
	bad.Date = time.Time{}
	assert.Error(t, rec.Record(bad))
	assert.Equal(t, 0, rec.Len())
}
