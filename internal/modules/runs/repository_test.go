package runs

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			symbols TEXT NOT NULL,
			initial_cash REAL NOT NULL,
			metrics TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func TestCreateAndGet(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))

	run := Run{
		ID:          "run-1",
		StartDate:   time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, time.March, 22, 0, 0, 0, 0, time.UTC),
		Symbols:     []string{"AAPL", "MSFT"},
		InitialCash: 100_000,
	}
	require.NoError(t, repo.Create(run))

	got, err := repo.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Symbols)
	assert.Equal(t, 100_000.0, got.InitialCash)
	assert.True(t, got.StartDate.Equal(run.StartDate))
	assert.Empty(t, got.Metrics)

	_, err = repo.Get("missing")
	assert.Error(t, err)
}

func TestCreateRequiresID(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))
	assert.Error(t, repo.Create(Run{}))
}

func TestSetMetrics(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, repo.Create(Run{ID: "run-1", InitialCash: 50_000}))
	require.NoError(t, repo.SetMetrics("run-1", `{"total_return":0.01}`))

	got, err := repo.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, `{"total_return":0.01}`, got.Metrics)

	assert.Error(t, repo.SetMetrics("missing", "{}"))
}

func TestGetAllOrdersByRecency(t *testing.T) {
	repo := NewRepository(newTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, repo.Create(Run{ID: "run-1"}))
	require.NoError(t, repo.Create(Run{ID: "run-2"}))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
