package market

import (
	"fmt"
	"math"
	"strings"

	"lattice-pricer/internal/model"
)

// VolType says how volatility values are quoted.
type VolType int

const (
	SpotVol VolType = iota // term volatility from 0 to each maturity
	FwdVol                 // flat volatility on each segment
)

func (vt VolType) String() string {
	switch vt {
	case SpotVol:
		return "spot"
	case FwdVol:
		return "fwd"
	default:
		return fmt.Sprintf("VolType(%d)", int(vt))
	}
}

// ParseVolType accepts names or the numeric codes 0, 1. Empty means SpotVol.
func ParseVolType(s string) (VolType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "spot", "spotvol":
		return SpotVol, nil
	case "1", "fwd", "fwdvol", "forward":
		return FwdVol, nil
	}
	return 0, fmt.Errorf("volatility input type %q: %w", s, model.ErrUnknownInputType)
}

// VolatilityCurve is an immutable term structure of total variance, linear
// between knots and extended at the last forward variance rate.
type VolatilityCurve struct {
	c cumulative
}

func NewVolatilityCurve(tmats, vals []float64, vt VolType) (*VolatilityCurve, error) {
	if err := checkKnots(tmats, vals); err != nil {
		return nil, fmt.Errorf("volatility curve: %w", err)
	}
	for i, v := range vals {
		if v < 0 {
			return nil, model.Invalidf("volatility curve: vol %d is negative", i)
		}
	}
	times := make([]float64, len(tmats))
	copy(times, tmats)
	cum := make([]float64, len(tmats))

	switch vt {
	case SpotVol:
		for i, v := range vals {
			cum[i] = v * v * times[i]
			if i > 0 && cum[i] < cum[i-1] {
				return nil, model.Invalidf("volatility curve: total variance decreases at index %d", i)
			}
		}
	case FwdVol:
		prevT, acc := 0.0, 0.0
		for i, v := range vals {
			acc += v * v * (times[i] - prevT)
			cum[i] = acc
			prevT = times[i]
		}
	default:
		return nil, fmt.Errorf("volatility curve: %w", model.ErrUnknownInputType)
	}
	return &VolatilityCurve{c: cumulative{times: times, cum: cum}}, nil
}

// FlatVolatility returns a constant volatility curve.
func FlatVolatility(vol float64) (*VolatilityCurve, error) {
	return NewVolatilityCurve([]float64{1}, []float64{vol}, SpotVol)
}

// ForwardVariance is the integrated variance between t1 and t2.
func (v *VolatilityCurve) ForwardVariance(t1, t2 float64) float64 {
	return v.c.at(t2) - v.c.at(t1)
}

// SpotVol is the term volatility from 0 to t.
func (v *VolatilityCurve) SpotVol(t float64) float64 {
	if t < 1e-12 {
		return math.Sqrt(v.c.rate(0))
	}
	return math.Sqrt(v.c.at(t) / t)
}

// FwdVol is the volatility implied between t1 and t2.
func (v *VolatilityCurve) FwdVol(t1, t2 float64) float64 {
	return math.Sqrt(math.Max(v.c.average(t1, t2), 0))
}
