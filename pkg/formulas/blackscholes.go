package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BSGreeks holds the Black-Scholes greeks for a single option.
type BSGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"` // per calendar day
	Vega  float64 `json:"vega"`  // per 1% volatility change
}

// BlackScholesPrice calculates the Black-Scholes price of a European option.
//
// Args:
//
//	spot: Current underlying price
//	strike: Option strike
//	timeToExpiry: Time to expiration in years
//	volatility: Annualized volatility (as decimal)
//	riskFreeRate: Annual risk-free rate (as decimal)
//	isPut: true for puts, false for calls
//
// At or past expiration (timeToExpiry <= 0) the intrinsic value is returned.
func BlackScholesPrice(spot, strike, timeToExpiry, volatility, riskFreeRate float64, isPut bool) float64 {
	if timeToExpiry <= 0 || volatility <= 0 || spot <= 0 || strike <= 0 {
		return intrinsicValue(spot, strike, isPut)
	}

	d1, d2 := dValues(spot, strike, timeToExpiry, volatility, riskFreeRate)
	discount := math.Exp(-riskFreeRate * timeToExpiry)

	if isPut {
		return strike*discount*distuv.UnitNormal.CDF(-d2) - spot*distuv.UnitNormal.CDF(-d1)
	}
	return spot*distuv.UnitNormal.CDF(d1) - strike*discount*distuv.UnitNormal.CDF(d2)
}

// BlackScholesGreeks calculates the Black-Scholes greeks of a European option.
// Arguments match BlackScholesPrice. Past expiration the greeks collapse to
// the intrinsic delta (±1 or 0) with zero gamma/theta/vega.
func BlackScholesGreeks(spot, strike, timeToExpiry, volatility, riskFreeRate float64, isPut bool) BSGreeks {
	if timeToExpiry <= 0 || volatility <= 0 || spot <= 0 || strike <= 0 {
		return expiredGreeks(spot, strike, isPut)
	}

	d1, d2 := dValues(spot, strike, timeToExpiry, volatility, riskFreeRate)
	discount := math.Exp(-riskFreeRate * timeToExpiry)
	pdf := distuv.UnitNormal.Prob(d1)
	sqrtT := math.Sqrt(timeToExpiry)

	var delta, theta float64
	if isPut {
		delta = distuv.UnitNormal.CDF(d1) - 1
		theta = (-spot*pdf*volatility/(2*sqrtT) + riskFreeRate*strike*discount*distuv.UnitNormal.CDF(-d2)) / 365
	} else {
		delta = distuv.UnitNormal.CDF(d1)
		theta = (-spot*pdf*volatility/(2*sqrtT) - riskFreeRate*strike*discount*distuv.UnitNormal.CDF(d2)) / 365
	}

	return BSGreeks{
		Delta: delta,
		Gamma: pdf / (spot * volatility * sqrtT),
		Theta: theta,
		Vega:  spot * pdf * sqrtT / 100,
	}
}

func dValues(spot, strike, timeToExpiry, volatility, riskFreeRate float64) (float64, float64) {
	sqrtT := math.Sqrt(timeToExpiry)
	d1 := (math.Log(spot/strike) + (riskFreeRate+volatility*volatility/2)*timeToExpiry) / (volatility * sqrtT)
	return d1, d1 - volatility*sqrtT
}

func intrinsicValue(spot, strike float64, isPut bool) float64 {
	if isPut {
		return math.Max(0, strike-spot)
	}
	return math.Max(0, spot-strike)
}

func expiredGreeks(spot, strike float64, isPut bool) BSGreeks {
	g := BSGreeks{}
	if isPut {
		if spot < strike {
			g.Delta = -1
		}
	} else {
		if spot > strike {
			g.Delta = 1
		}
	}
	return g
}
