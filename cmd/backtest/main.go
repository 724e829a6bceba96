// Package main is the entry point for the wheelhouse backtesting engine.
// It loads configuration, replays the wheel strategy over the configured
// date range, persists the run's ledger and snapshots to results.db, and
// optionally serves the results API afterwards.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/wheelhouse/internal/config"
	"github.com/aristath/wheelhouse/internal/database"
	"github.com/aristath/wheelhouse/internal/modules/engine"
	"github.com/aristath/wheelhouse/internal/modules/historical"
	"github.com/aristath/wheelhouse/internal/modules/ledger"
	"github.com/aristath/wheelhouse/internal/modules/runs"
	"github.com/aristath/wheelhouse/internal/modules/snapshots"
	"github.com/aristath/wheelhouse/internal/server"
	"github.com/aristath/wheelhouse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting wheelhouse")

	// Configuration errors are the only fatal errors; per-day data gaps are
	// handled gracefully inside the run
	strategy, err := config.LoadStrategy(cfg.StrategyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load strategy configuration")
	}
	if err := strategy.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid strategy configuration")
	}
	if cfg.StartDate.IsZero() || cfg.EndDate.IsZero() {
		log.Fatal().Msg("WHEEL_START_DATE and WHEEL_END_DATE are required")
	}
	if len(cfg.Symbols) == 0 {
		log.Fatal().Msg("WHEEL_SYMBOLS is required")
	}

	// history.db is read-heavy and replaceable; results.db is the append-only
	// trail and gets the full-safety profile
	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	resultsDB, err := database.New(database.Config{
		Path:    cfg.ResultsDBPath(),
		Profile: database.ProfileLedger,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer resultsDB.Close()

	for _, db := range []*database.DB{historyDB, resultsDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("db", db.Name()).Msg("Failed to migrate database")
		}
	}

	data := historical.NewProvider(historyDB.Conn(), log)
	runRepo := runs.NewRepository(resultsDB.Conn(), log)
	tradeRepo := ledger.NewRepository(resultsDB.Conn(), log)
	snapRepo := snapshots.NewRepository(resultsDB.Conn(), log)

	e := engine.New(cfg, strategy, data, log)

	if err := runRepo.Create(runs.Run{
		ID:          e.RunID(),
		StartDate:   cfg.StartDate,
		EndDate:     cfg.EndDate,
		Symbols:     cfg.Symbols,
		InitialCash: cfg.InitialCash,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to create run record")
	}

	result, err := e.Run()
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}

	if err := tradeRepo.CreateBatch(e.Trades()); err != nil {
		log.Fatal().Err(err).Msg("Failed to persist trades")
	}
	if err := snapRepo.CreateBatch(e.Snapshots()); err != nil {
		log.Fatal().Err(err).Msg("Failed to persist snapshots")
	}

	metricsJSON, err := json.Marshal(result)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal metrics")
	}
	if err := runRepo.SetMetrics(e.RunID(), string(metricsJSON)); err != nil {
		log.Fatal().Err(err).Msg("Failed to store metrics")
	}

	log.Info().
		Str("run_id", result.RunID).
		Float64("final_value", result.FinalValue).
		Float64("total_return", result.TotalReturn).
		Float64("max_drawdown", result.MaxDrawdown).
		Int("trades", result.TotalTrades).
		Int("completed_cycles", result.CompletedCycles).
		Msg("Backtest complete")

	if !cfg.Serve {
		return
	}

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Runs:      runRepo,
		Trades:    tradeRepo,
		Snapshots: snapRepo,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Shutdown complete")
}
