package market

import (
	"fmt"
	"math"
	"sort"

	"lattice-pricer/internal/model"
)

// cumulative is a piecewise-linear function F(t) with F(0) = 0 and knots at
// times. Between knots the slope is constant; beyond the last knot the last
// slope is extended. Yield curves store the integrated forward rate here and
// volatility curves the total variance.
type cumulative struct {
	times []float64
	cum   []float64
}

func checkKnots(tmats, vals []float64) error {
	if len(tmats) != len(vals) {
		return fmt.Errorf("%d maturities, %d values: %w", len(tmats), len(vals), model.ErrLengthMismatch)
	}
	if len(tmats) == 0 {
		return model.Invalidf("term structure needs at least one knot")
	}
	for i, t := range tmats {
		if !(t > 0) || math.IsInf(t, 0) {
			return model.Invalidf("maturity %d is %v, want > 0", i, t)
		}
		if i > 0 && t <= tmats[i-1] {
			return model.Invalidf("maturities not strictly increasing at index %d", i)
		}
		if math.IsNaN(vals[i]) || math.IsInf(vals[i], 0) {
			return model.Invalidf("value %d is not finite", i)
		}
	}
	return nil
}

func (c cumulative) prev(i int) (float64, float64) {
	if i == 0 {
		return 0, 0
	}
	return c.times[i-1], c.cum[i-1]
}

// slope is dF/dt on segment i, the interval ending at times[i].
func (c cumulative) slope(i int) float64 {
	t0, f0 := c.prev(i)
	return (c.cum[i] - f0) / (c.times[i] - t0)
}

func (c cumulative) segment(t float64) int {
	k := sort.SearchFloat64s(c.times, t)
	if k >= len(c.times) {
		k = len(c.times) - 1
	}
	return k
}

// at evaluates F(t).
func (c cumulative) at(t float64) float64 {
	if t <= 0 {
		return 0
	}
	k := sort.SearchFloat64s(c.times, t)
	if k >= len(c.times) {
		n := len(c.times) - 1
		return c.cum[n] + c.slope(n)*(t-c.times[n])
	}
	t0, f0 := c.prev(k)
	return f0 + c.slope(k)*(t-t0)
}

// rate is the slope of the segment containing t.
func (c cumulative) rate(t float64) float64 {
	if t <= 0 {
		return c.slope(0)
	}
	return c.slope(c.segment(t))
}

// average is (F(t2)-F(t1))/(t2-t1), or the local slope when t1 == t2.
func (c cumulative) average(t1, t2 float64) float64 {
	if t2 < t1 {
		t1, t2 = t2, t1
	}
	if t2-t1 < 1e-12 {
		return c.rate(t1)
	}
	return (c.at(t2) - c.at(t1)) / (t2 - t1)
}
