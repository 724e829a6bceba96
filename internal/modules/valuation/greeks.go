package valuation

import (
	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/pkg/formulas"
)

// BlackScholesCalculator implements domain.GreeksCalculator with the
// closed-form Black-Scholes model.
type BlackScholesCalculator struct{}

// Compile-time check that BlackScholesCalculator implements domain.GreeksCalculator
var _ domain.GreeksCalculator = BlackScholesCalculator{}

// Greeks computes option sensitivities for a European option
func (BlackScholesCalculator) Greeks(spot, strike, timeToExpiryYears, volatility, riskFreeRate float64, kind domain.OptionKind) domain.Greeks {
	g := formulas.BlackScholesGreeks(spot, strike, timeToExpiryYears, volatility, riskFreeRate, kind == domain.OptionKindPut)
	return domain.Greeks{
		Delta: g.Delta,
		Gamma: g.Gamma,
		Theta: g.Theta,
		Vega:  g.Vega,
	}
}
