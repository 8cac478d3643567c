package model

import (
	"math"
	"strings"
)

// PricingInputs is the canonical market input bundle for one solve.
// Units:
// - Spot: price of one unit of the underlying
// - DivYield: continuously compounded, per year
// - Volatility: annualized, used when VolCurve is empty
type PricingInputs struct {
	Spot          float64
	DiscountCurve string
	DivYield      float64
	Volatility    float64
	VolCurve      string
}

func (in PricingInputs) Validate() error {
	if !(in.Spot > 0) || math.IsInf(in.Spot, 0) {
		return Invalidf("spot must be > 0")
	}
	if strings.TrimSpace(in.DiscountCurve) == "" {
		return Invalidf("discount curve name is required")
	}
	if math.IsNaN(in.DivYield) || math.IsInf(in.DivYield, 0) {
		return Invalidf("div yield must be finite")
	}
	// Zero volatility is left for the solver to reject as a degenerate variance.
	if in.Volatility < 0 || math.IsNaN(in.Volatility) || math.IsInf(in.Volatility, 0) {
		return Invalidf("volatility must be finite and >= 0")
	}
	return nil
}
