package product

import (
	"fmt"
	"math"

	"lattice-pricer/internal/model"
)

// AsianBasketCallPut pays max(phi*(A-K), 0) where A is the average over
// fixings of the basket sum(q_a * S_a). Path evaluation only.
type AsianBasketCallPut struct {
	base
	payoffType model.PayoffType
	strike     float64
	quantities []float64
}

func NewAsianBasketCallPut(pt model.PayoffType, strike float64, fixTimes, quantities []float64) (*AsianBasketCallPut, error) {
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	if err := validStrike(strike); err != nil {
		return nil, err
	}
	if len(quantities) == 0 {
		return nil, model.Invalidf("asian basket needs at least one asset quantity")
	}
	for i, q := range quantities {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, model.Invalidf("quantity %d is not finite", i)
		}
	}
	sched, err := model.NewSchedule(fixTimes)
	if err != nil {
		return nil, fmt.Errorf("asian basket fixings: %w", err)
	}
	qs := make([]float64, len(quantities))
	copy(qs, quantities)
	return &AsianBasketCallPut{base: newBase(sched), payoffType: pt, strike: strike, quantities: qs}, nil
}

func (a *AsianBasketCallPut) Name() string { return "asian_basket" }

func (a *AsianBasketCallPut) NAssets() int { return len(a.quantities) }

func (a *AsianBasketCallPut) EvalPath(path [][]float64) ([]float64, error) {
	if err := a.checkPath(path, len(a.quantities)); err != nil {
		return nil, err
	}
	avg := 0.0
	for _, row := range path {
		for j, s := range row {
			avg += a.quantities[j] * s
		}
	}
	avg /= float64(len(path))

	out := make([]float64, a.sched.Len())
	out[a.sched.Last()] = vanilla(a.payoffType, avg, a.strike)
	return out, nil
}

func (a *AsianBasketCallPut) EvalNode(int, []float64, float64) (model.NodeValue, error) {
	return model.NodeValue{}, unsupported(a.Name(), "lattice evaluation")
}
