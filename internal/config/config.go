// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases (always absolute)
	StrategyPath string // Path to the strategy YAML file (optional)
	LogLevel     string
	Port         int
	Serve        bool // Serve results API after the run completes

	// Run parameters
	StartDate   time.Time
	EndDate     time.Time
	Symbols     []string
	InitialCash float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. WHEEL_DATA_DIR environment variable
	// 2. ./data
	// Always resolved to an absolute path.
	dataDir := getEnv("WHEEL_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	port, err := strconv.Atoi(getEnv("WHEEL_PORT", "8090"))
	if err != nil {
		return nil, fmt.Errorf("invalid WHEEL_PORT: %w", err)
	}

	startDate, err := parseDate(getEnv("WHEEL_START_DATE", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid WHEEL_START_DATE: %w", err)
	}
	endDate, err := parseDate(getEnv("WHEEL_END_DATE", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid WHEEL_END_DATE: %w", err)
	}

	initialCash := 100_000.0
	if raw := getEnv("WHEEL_INITIAL_CASH", ""); raw != "" {
		initialCash, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WHEEL_INITIAL_CASH: %w", err)
		}
	}

	return &Config{
		DataDir:      absDataDir,
		StrategyPath: getEnv("WHEEL_STRATEGY_FILE", ""),
		LogLevel:     getEnv("WHEEL_LOG_LEVEL", "info"),
		Port:         port,
		Serve:        getEnv("WHEEL_SERVE", "false") == "true",
		StartDate:    startDate,
		EndDate:      endDate,
		Symbols:      splitSymbols(getEnv("WHEEL_SYMBOLS", "")),
		InitialCash:  initialCash,
	}, nil
}

// HistoryDBPath returns the path to the historical data database
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ResultsDBPath returns the path to the backtest results database
func (c *Config) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
