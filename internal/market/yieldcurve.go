package market

import (
	"fmt"
	"math"
	"strings"

	"lattice-pricer/internal/model"
)

// InputType says how yield curve values are quoted.
type InputType int

const (
	SpotRate InputType = iota // continuously compounded zero rates
	FwdRate                   // piecewise flat instantaneous forwards
	ZeroBond                  // discount factors
)

func (it InputType) String() string {
	switch it {
	case SpotRate:
		return "spot"
	case FwdRate:
		return "fwd"
	case ZeroBond:
		return "zero"
	default:
		return fmt.Sprintf("InputType(%d)", int(it))
	}
}

// ParseInputType accepts names or the numeric codes 0, 1, 2.
// An empty string means SpotRate.
func ParseInputType(s string) (InputType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "spot", "spotrate", "zero_rate":
		return SpotRate, nil
	case "1", "fwd", "fwdrate", "forward":
		return FwdRate, nil
	case "2", "zero", "zerobond", "discount", "df":
		return ZeroBond, nil
	}
	return 0, fmt.Errorf("yield curve input type %q: %w", s, model.ErrUnknownInputType)
}

// YieldCurve is an immutable discount curve with piecewise flat forward rates
// between knots and flat forward extrapolation on both ends.
type YieldCurve struct {
	c cumulative
}

// NewYieldCurve builds a curve from maturities (years, strictly increasing)
// and values quoted according to it.
func NewYieldCurve(tmats, vals []float64, it InputType) (*YieldCurve, error) {
	if err := checkKnots(tmats, vals); err != nil {
		return nil, fmt.Errorf("yield curve: %w", err)
	}
	times := make([]float64, len(tmats))
	copy(times, tmats)
	cum := make([]float64, len(tmats))

	switch it {
	case SpotRate:
		for i, r := range vals {
			cum[i] = r * times[i]
		}
	case FwdRate:
		prevT, acc := 0.0, 0.0
		for i, f := range vals {
			acc += f * (times[i] - prevT)
			cum[i] = acc
			prevT = times[i]
		}
	case ZeroBond:
		for i, df := range vals {
			if !(df > 0) {
				return nil, model.Invalidf("yield curve: discount factor %d is %v, want > 0", i, df)
			}
			cum[i] = -math.Log(df)
		}
	default:
		return nil, fmt.Errorf("yield curve: %w", model.ErrUnknownInputType)
	}
	return &YieldCurve{c: cumulative{times: times, cum: cum}}, nil
}

// FlatYieldCurve returns a curve with a single continuously compounded rate.
func FlatYieldCurve(rate float64) (*YieldCurve, error) {
	return NewYieldCurve([]float64{1}, []float64{rate}, SpotRate)
}

// Discount is the discount factor to time t.
func (y *YieldCurve) Discount(t float64) float64 {
	return math.Exp(-y.c.at(t))
}

// FwdDiscount is the forward discount factor from t1 to t2.
func (y *YieldCurve) FwdDiscount(t1, t2 float64) float64 {
	return math.Exp(-(y.c.at(t2) - y.c.at(t1)))
}

// SpotRate is the continuously compounded zero rate to t.
func (y *YieldCurve) SpotRate(t float64) float64 {
	if t < 1e-12 {
		return y.c.rate(0)
	}
	return y.c.at(t) / t
}

// FwdRate is the continuously compounded forward rate between t1 and t2.
func (y *YieldCurve) FwdRate(t1, t2 float64) float64 {
	return y.c.average(t1, t2)
}

// Knots returns copies of the curve maturities.
func (y *YieldCurve) Knots() []float64 {
	out := make([]float64, len(y.c.times))
	copy(out, y.c.times)
	return out
}
