package scanner

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wheelhouse/internal/config"
	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/internal/modules/valuation"
)

var scanDate = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC) // a Monday

func newTestScanner() *Scanner {
	return NewScanner(valuation.BlackScholesCalculator{}, 0.04, zerolog.New(nil).Level(zerolog.Disabled))
}

func testCriteria() config.StrategyConfig {
	cfg := config.DefaultStrategy()
	cfg.PutTargetDTE = 35
	cfg.PutDeltaMin = 0.10
	cfg.PutDeltaMax = 0.40
	cfg.MinPutPremium = 0.30
	cfg.MinVolume = 10
	cfg.MaxSpreadPct = 0.15
	return cfg
}

func put(strike float64, dte int, bid, ask float64, volume int64, delta float64) domain.OptionContract {
	d := delta
	return domain.OptionContract{
		Kind:       domain.OptionKindPut,
		Strike:     strike,
		Expiration: scanDate.AddDate(0, 0, dte),
		Bid:        bid,
		Ask:        ask,
		Volume:     volume,
		Delta:      &d,
	}
}

func TestFindBestPutFilters(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()
	spot := 100.0

	tests := []struct {
		name     string
		contract domain.OptionContract
		wantPick bool
	}{
		{"passes all filters", put(95, 30, 1.00, 1.10, 50, -0.25), true},
		{"dte too long", put(95, 45, 1.00, 1.10, 50, -0.25), false},
		{"expired", put(95, 0, 1.00, 1.10, 50, -0.25), false},
		{"ITM strike", put(105, 30, 6.00, 6.30, 50, -0.70), false},
		{"ATM strike not strictly OTM", put(100, 30, 2.00, 2.10, 50, -0.50), false},
		{"premium below minimum", put(80, 30, 0.10, 0.15, 50, -0.20), false},
		{"delta out of range", put(95, 30, 1.00, 1.10, 50, -0.55), false},
		{"volume too thin", put(95, 30, 1.00, 1.10, 5, -0.25), false},
		{"spread too wide", put(95, 30, 1.00, 1.40, 50, -0.25), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &domain.ChainSnapshot{Puts: []domain.OptionContract{tt.contract}}
			got := s.FindBestPut("AAPL", spot, scanDate, chain, 0.25, cfg)
			if tt.wantPick {
				require.NotNil(t, got)
				assert.Equal(t, tt.contract.Strike, got.Contract.Strike)
				assert.Equal(t, domain.OptionKindPut, got.Contract.Kind)
				assert.Equal(t, "AAPL", got.Contract.Underlying)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestFindBestPutPicksHighestQuality(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()

	// Higher premium and volume with alike spreads wins
	weak := put(90, 30, 0.50, 0.55, 20, -0.15)
	strong := put(95, 30, 1.50, 1.60, 200, -0.30)
	chain := &domain.ChainSnapshot{Puts: []domain.OptionContract{weak, strong}}

	got := s.FindBestPut("AAPL", 100, scanDate, chain, 0.25, cfg)
	require.NotNil(t, got)
	assert.Equal(t, 95.0, got.Contract.Strike)
}

func TestFindBestPutStableTieBreak(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()

	first := put(94, 30, 1.00, 1.10, 50, -0.25)
	second := put(95, 30, 1.00, 1.10, 50, -0.25) // identical quality
	chain := &domain.ChainSnapshot{Puts: []domain.OptionContract{first, second}}

	got := s.FindBestPut("AAPL", 100, scanDate, chain, 0.25, cfg)
	require.NotNil(t, got)
	assert.Equal(t, 94.0, got.Contract.Strike) // first encountered wins
}

func TestFindBestPutEstimatesMissingDelta(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()

	c := put(95, 30, 1.00, 1.10, 50, 0)
	c.Delta = nil // no greeks in the chain
	chain := &domain.ChainSnapshot{Puts: []domain.OptionContract{c}}

	got := s.FindBestPut("AAPL", 100, scanDate, chain, 0.25, cfg)
	require.NotNil(t, got)
	assert.Negative(t, got.Delta)
}

func TestFindBestPutScoreWeights(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()

	// volume 50 -> 0.5; spread 0.10/1.05 ≈ 0.0952 -> spreadScore ≈ 0.365;
	// premium 1.00/5 = 0.2; delta score 1.0
	c := put(95, 30, 1.00, 1.10, 50, -0.25)
	chain := &domain.ChainSnapshot{Puts: []domain.OptionContract{c}}

	got := s.FindBestPut("AAPL", 100, scanDate, chain, 0.25, cfg)
	require.NotNil(t, got)

	spreadPct := 0.10 / 1.05
	want := 0.2*0.5 + 0.3*(1-spreadPct/cfg.MaxSpreadPct) + 0.3*0.2 + 0.2*1.0
	assert.InDelta(t, want, got.Score, 1e-9)
}

func TestFindBestCallScansChain(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()
	cfg.MinCallPremium = 0.20

	d := 0.25
	call := domain.OptionContract{
		Kind:       domain.OptionKindCall,
		Strike:     105,
		Expiration: scanDate.AddDate(0, 0, 30),
		Bid:        1.20,
		Ask:        1.30,
		Volume:     80,
		Delta:      &d,
	}
	chain := &domain.ChainSnapshot{Calls: []domain.OptionContract{call}}

	got := s.FindBestCall("AAPL", 100, scanDate, chain, 100, 0.25, cfg)
	require.NotNil(t, got)
	assert.Equal(t, 105.0, got.Contract.Strike)
	assert.False(t, got.Synthetic)
}

func TestFindBestCallRespectsCostBasis(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()
	cfg.MinCallPremium = 0.20

	d := 0.30
	// Strike above spot but below the 110 cost basis: would lock in a loss
	call := domain.OptionContract{
		Kind:       domain.OptionKindCall,
		Strike:     105,
		Expiration: scanDate.AddDate(0, 0, 30),
		Bid:        1.20,
		Ask:        1.30,
		Volume:     80,
		Delta:      &d,
	}
	chain := &domain.ChainSnapshot{Calls: []domain.OptionContract{call}}

	got := s.FindBestCall("AAPL", 100, scanDate, chain, 110, 0.25, cfg)
	assert.Nil(t, got)
}

func TestFindBestCallSynthesizesWithoutChain(t *testing.T) {
	s := newTestScanner()
	cfg := testCriteria()
	cfg.MinCallPremium = 0.10
	cfg.CallDeltaMin = 0.05
	cfg.CallDeltaMax = 0.60

	got := s.FindBestCall("AAPL", 100, scanDate, nil, 98, 0.30, cfg)
	require.NotNil(t, got)
	assert.True(t, got.Synthetic)
	assert.GreaterOrEqual(t, got.Contract.Strike, 102.0) // above spot buffer and basis
	assert.Greater(t, got.Contract.Bid, 0.0)
	assert.Less(t, got.Contract.Bid, got.Contract.Ask)
	assert.Equal(t, time.Friday, got.Contract.Expiration.Weekday())
}

func TestFindBestPutNilChain(t *testing.T) {
	s := newTestScanner()
	assert.Nil(t, s.FindBestPut("AAPL", 100, scanDate, nil, 0.25, testCriteria()))
}
