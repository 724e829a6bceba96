// Package scanner selects the best available contract for the side the wheel
// allows. Filtering always precedes scoring; only candidates passing every
// filter are scored.
package scanner

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/config"
	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/internal/modules/market_hours"
)

const minimumBid = 0.05 // contracts quoted at or below this are untradeable

// Opportunity represents a scored candidate contract
type Opportunity struct {
	Contract  domain.OptionContract `json:"contract"`
	DTE       int                   `json:"dte"`
	Delta     float64               `json:"delta"`
	SpreadPct float64               `json:"spread_pct"`
	Score     float64               `json:"score"`
	Synthetic bool                  `json:"synthetic"` // priced from the estimate model, not a chain quote
}

// Scanner filters and scores chain snapshots against strategy criteria
type Scanner struct {
	greeks       domain.GreeksCalculator
	riskFreeRate float64
	log          zerolog.Logger
}

// NewScanner creates a new opportunity scanner
func NewScanner(greeks domain.GreeksCalculator, riskFreeRate float64, log zerolog.Logger) *Scanner {
	return &Scanner{
		greeks:       greeks,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "scanner").Logger(),
	}
}

// FindBestPut returns the highest-quality cash-secured put candidate, or nil.
// Ties keep the first-encountered contract (stable selection).
func (s *Scanner) FindBestPut(symbol string, spot float64, date time.Time, chain *domain.ChainSnapshot, volatilityHint float64, cfg config.StrategyConfig) *Opportunity {
	if chain == nil || spot <= 0 {
		return nil
	}

	var best *Opportunity
	for _, c := range chain.Puts {
		dte := market_hours.DaysToExpiration(date, c.Expiration)
		if dte <= 0 || dte > cfg.PutTargetDTE {
			continue
		}
		if c.Strike >= spot { // strictly OTM
			continue
		}
		if c.Bid < cfg.MinPutPremium || c.Bid <= minimumBid {
			continue
		}
		if c.Volume < cfg.MinVolume {
			continue
		}

		mid := c.Mid()
		if mid <= 0 {
			continue
		}
		spreadPct := (c.Ask - c.Bid) / mid
		if spreadPct > cfg.MaxSpreadPct {
			continue
		}

		delta := s.contractDelta(c, spot, date, volatilityHint)
		if math.Abs(delta) < cfg.PutDeltaMin || math.Abs(delta) > cfg.PutDeltaMax {
			continue
		}

		score := quality(c.Volume, spreadPct, c.Bid, cfg.MaxSpreadPct)
		if best == nil || score > best.Score {
			opp := Opportunity{Contract: c, DTE: dte, Delta: delta, SpreadPct: spreadPct, Score: score}
			opp.Contract.Underlying = symbol
			opp.Contract.Kind = domain.OptionKindPut
			best = &opp
		}
	}
	return best
}

// FindBestCall returns the best covered-call candidate for a stock lot held at
// costBasis. When the chain carries call quotes they are scanned like puts;
// otherwise a candidate is synthesized from the target strike/DTE and priced
// with the closed-form estimate.
func (s *Scanner) FindBestCall(symbol string, spot float64, date time.Time, chain *domain.ChainSnapshot, costBasis, volatilityHint float64, cfg config.StrategyConfig) *Opportunity {
	if spot <= 0 {
		return nil
	}

	if chain != nil && len(chain.Calls) > 0 {
		if opp := s.scanCalls(symbol, spot, date, chain, costBasis, volatilityHint, cfg); opp != nil {
			return opp
		}
		return nil
	}

	return s.synthesizeCall(symbol, spot, date, costBasis, volatilityHint, cfg)
}

func (s *Scanner) scanCalls(symbol string, spot float64, date time.Time, chain *domain.ChainSnapshot, costBasis, volatilityHint float64, cfg config.StrategyConfig) *Opportunity {
	var best *Opportunity
	for _, c := range chain.Calls {
		dte := market_hours.DaysToExpiration(date, c.Expiration)
		if dte <= 0 || dte > cfg.CallTargetDTE {
			continue
		}
		// Not deeply ITM, and never below the lot's cost basis
		if c.Strike <= spot*0.98 || c.Strike < costBasis {
			continue
		}
		if c.Bid < cfg.MinCallPremium || c.Bid <= minimumBid {
			continue
		}
		if c.Volume < cfg.MinVolume {
			continue
		}

		mid := c.Mid()
		if mid <= 0 {
			continue
		}
		spreadPct := (c.Ask - c.Bid) / mid
		if spreadPct > cfg.MaxSpreadPct {
			continue
		}

		delta := s.contractDelta(c, spot, date, volatilityHint)
		if math.Abs(delta) < cfg.CallDeltaMin || math.Abs(delta) > cfg.CallDeltaMax {
			continue
		}

		score := quality(c.Volume, spreadPct, c.Bid, cfg.MaxSpreadPct)
		if best == nil || score > best.Score {
			opp := Opportunity{Contract: c, DTE: dte, Delta: delta, SpreadPct: spreadPct, Score: score}
			opp.Contract.Underlying = symbol
			opp.Contract.Kind = domain.OptionKindCall
			best = &opp
		}
	}
	return best
}

// synthesizeCall builds an estimate-driven candidate when no chain is
// available: target strike is the first standard increment above both the
// cost basis and a small OTM buffer, expiring at the standard target date.
func (s *Scanner) synthesizeCall(symbol string, spot float64, date time.Time, costBasis, volatilityHint float64, cfg config.StrategyConfig) *Opportunity {
	expiration := market_hours.TargetExpiration(date, cfg.CallTargetDTE)
	dte := market_hours.DaysToExpiration(date, expiration)
	if dte <= 0 {
		return nil
	}

	strike := roundUpToIncrement(math.Max(costBasis, spot*1.02), spot)
	if strike <= spot*0.98 {
		return nil
	}

	vol := volatilityHint
	if vol <= 0 {
		vol = 0.25
	}
	years := float64(dte) / 365.0
	g := s.greeks.Greeks(spot, strike, years, vol, s.riskFreeRate, domain.OptionKindCall)
	if math.Abs(g.Delta) < cfg.CallDeltaMin || math.Abs(g.Delta) > cfg.CallDeltaMax {
		// The synthesized strike is a fallback, not a chain pick; an
		// out-of-range delta means the premium is not worth the cap risk.
		return nil
	}

	estimate := math.Abs(g.Delta) * spot * vol * math.Sqrt(years)
	bid := round2(estimate * 0.96)
	ask := round2(estimate * 1.04)
	if bid < cfg.MinCallPremium || bid <= minimumBid {
		return nil
	}

	mid := (bid + ask) / 2
	spreadPct := (ask - bid) / mid

	return &Opportunity{
		Contract: domain.OptionContract{
			Underlying: symbol,
			Kind:       domain.OptionKindCall,
			Strike:     strike,
			Expiration: expiration,
			Bid:        bid,
			Ask:        ask,
		},
		DTE:       dte,
		Delta:     g.Delta,
		SpreadPct: spreadPct,
		Score:     quality(0, spreadPct, bid, cfg.MaxSpreadPct),
		Synthetic: true,
	}
}

// contractDelta uses the chain's delta when present, estimating it otherwise
func (s *Scanner) contractDelta(c domain.OptionContract, spot float64, date time.Time, volatilityHint float64) float64 {
	if c.Delta != nil {
		return *c.Delta
	}
	vol := volatilityHint
	if vol <= 0 {
		vol = 0.25
	}
	years := c.Expiration.Sub(date).Hours() / 24 / 365
	return s.greeks.Greeks(spot, c.Strike, years, vol, s.riskFreeRate, c.Kind).Delta
}

// quality scores a filtered candidate. Delta contributes a constant term since
// the range filter already ran.
func quality(volume int64, spreadPct, bid, maxSpreadPct float64) float64 {
	volumeScore := math.Min(1, float64(volume)/100)
	spreadScore := math.Max(0, 1-spreadPct/maxSpreadPct)
	premiumScore := math.Min(1, bid/5.0)
	const deltaScore = 1.0
	return 0.2*volumeScore + 0.3*spreadScore + 0.3*premiumScore + 0.2*deltaScore
}

// roundUpToIncrement rounds a strike up to the standard listing increment
func roundUpToIncrement(target, spot float64) float64 {
	inc := 5.0
	switch {
	case spot < 25:
		inc = 0.5
	case spot < 200:
		inc = 1.0
	}
	return math.Ceil(target/inc) * inc
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
