// Package valuation prices option positions under partial market data.
// Lookups degrade through three tiers: exact historical quote, chain snapshot
// match, closed-form estimate. Tier failures are never surfaced to callers.
package valuation

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/internal/modules/portfolio"
)

const (
	defaultVolatility = 0.25
	// Positions at or in the money for their side get a volatility bump in
	// the closed-form estimate (moneyness = strike / spot).
	nearMoneyPutThreshold  = 0.95
	nearMoneyCallThreshold = 1.05
	volatilityAdjustment   = 1.2
	daysPerYear            = 365.0
)

// Valuer prices option lots as of a simulation date
type Valuer struct {
	data         domain.MarketDataProvider
	greeks       domain.GreeksCalculator
	riskFreeRate float64
	log          zerolog.Logger
}

// Compile-time check that Valuer implements portfolio.OptionValuer
var _ portfolio.OptionValuer = (*Valuer)(nil)

// NewValuer creates a new option valuation model
func NewValuer(data domain.MarketDataProvider, greeks domain.GreeksCalculator, riskFreeRate float64, log zerolog.Logger) *Valuer {
	return &Valuer{
		data:         data,
		greeks:       greeks,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "valuation").Logger(),
	}
}

// Value prices one option lot. At or past expiration the intrinsic value is
// returned exactly. A missing spot price returns 0; the caller must treat the
// position as unvaluable for the day rather than failing the run.
func (v *Valuer) Value(lot *portfolio.OptionLot, asOf time.Time, spot, volatilityHint float64) float64 {
	if !asOf.Before(lot.Expiration) {
		return intrinsic(lot.Kind, lot.Strike, spot)
	}

	if spot <= 0 {
		return 0
	}

	// Tier a: exact historical quote for the specific contract
	if lot.Symbol != "" {
		if quote, err := v.data.GetOptionQuote(lot.Symbol, asOf); err == nil {
			if mid := quoteMid(quote); mid > 0 {
				return mid
			}
		}
	}

	// Tier b: exact strike+expiration match in the chain snapshot
	if chain, err := v.data.GetChainSnapshot(lot.Underlying, asOf, spot); err == nil {
		if mid := chainMid(chain, lot); mid > 0 {
			return mid
		}
	}

	// Tier c: closed-form estimate
	return v.estimate(lot, asOf, spot, volatilityHint)
}

// estimate prices a lot as intrinsic plus a delta-scaled time value term
func (v *Valuer) estimate(lot *portfolio.OptionLot, asOf time.Time, spot, volatilityHint float64) float64 {
	vol := volatilityHint
	if vol <= 0 {
		vol = defaultVolatility
	}

	years := lot.Expiration.Sub(asOf).Hours() / 24 / daysPerYear
	if years < 0 {
		years = 0
	}

	adjusted := vol
	moneyness := lot.Strike / spot
	if (lot.Kind == domain.OptionKindPut && moneyness > nearMoneyPutThreshold) ||
		(lot.Kind == domain.OptionKindCall && moneyness < nearMoneyCallThreshold) {
		adjusted = vol * volatilityAdjustment
	}

	greeks := v.greeks.Greeks(spot, lot.Strike, years, vol, v.riskFreeRate, lot.Kind)

	base := intrinsic(lot.Kind, lot.Strike, spot)
	return base + math.Abs(greeks.Delta)*spot*adjusted*math.Sqrt(years)
}

func intrinsic(kind domain.OptionKind, strike, spot float64) float64 {
	if kind == domain.OptionKindPut {
		return math.Max(0, strike-spot)
	}
	return math.Max(0, spot-strike)
}

func quoteMid(q *domain.OptionQuote) float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

func chainMid(chain *domain.ChainSnapshot, lot *portfolio.OptionLot) float64 {
	contracts := chain.Puts
	if lot.Kind == domain.OptionKindCall {
		contracts = chain.Calls
	}
	for _, c := range contracts {
		if c.Strike == lot.Strike && sameDay(c.Expiration, lot.Expiration) {
			return c.Mid()
		}
	}
	return 0
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
