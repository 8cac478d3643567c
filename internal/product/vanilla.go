package product

import (
	"fmt"
	"math"

	"lattice-pricer/internal/model"
)

// EuropeanCallPut pays max(phi*(S-K), 0) at expiry.
type EuropeanCallPut struct {
	base
	payoffType model.PayoffType
	strike     float64
}

func NewEuropeanCallPut(pt model.PayoffType, strike, timeToExp float64) (*EuropeanCallPut, error) {
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	if err := validStrike(strike); err != nil {
		return nil, err
	}
	sched, err := expirySchedule(timeToExp)
	if err != nil {
		return nil, err
	}
	return &EuropeanCallPut{base: newBase(sched), payoffType: pt, strike: strike}, nil
}

func (e *EuropeanCallPut) Name() string { return "european" }

func (e *EuropeanCallPut) NAssets() int { return 1 }

func (e *EuropeanCallPut) PayoffType() model.PayoffType { return e.payoffType }

func (e *EuropeanCallPut) Strike() float64 { return e.strike }

func (e *EuropeanCallPut) EvalPath(path [][]float64) ([]float64, error) {
	if err := e.checkPath(path, 1); err != nil {
		return nil, err
	}
	out := make([]float64, e.sched.Len())
	last := e.sched.Last()
	out[last] = vanilla(e.payoffType, path[last][0], e.strike)
	return out, nil
}

func (e *EuropeanCallPut) EvalNode(idx int, spots []float64, _ float64) (model.NodeValue, error) {
	if err := e.checkNode(idx, spots, 1); err != nil {
		return model.NodeValue{}, err
	}
	return exerciseValue(vanilla(e.payoffType, spots[0], e.strike)), nil
}

// DigitalCallPut pays 1 at expiry if phi*(S-K) > 0.
type DigitalCallPut struct {
	base
	payoffType model.PayoffType
	strike     float64
}

func NewDigitalCallPut(pt model.PayoffType, strike, timeToExp float64) (*DigitalCallPut, error) {
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	if err := validStrike(strike); err != nil {
		return nil, err
	}
	sched, err := expirySchedule(timeToExp)
	if err != nil {
		return nil, err
	}
	return &DigitalCallPut{base: newBase(sched), payoffType: pt, strike: strike}, nil
}

func (d *DigitalCallPut) Name() string { return "digital" }

func (d *DigitalCallPut) NAssets() int { return 1 }

func (d *DigitalCallPut) PayoffType() model.PayoffType { return d.payoffType }

func (d *DigitalCallPut) Strike() float64 { return d.strike }

func (d *DigitalCallPut) EvalPath(path [][]float64) ([]float64, error) {
	if err := d.checkPath(path, 1); err != nil {
		return nil, err
	}
	out := make([]float64, d.sched.Len())
	last := d.sched.Last()
	out[last] = d.payoff(path[last][0])
	return out, nil
}

func (d *DigitalCallPut) EvalNode(idx int, spots []float64, _ float64) (model.NodeValue, error) {
	if err := d.checkNode(idx, spots, 1); err != nil {
		return model.NodeValue{}, err
	}
	return exerciseValue(d.payoff(spots[0])), nil
}

func (d *DigitalCallPut) payoff(s float64) float64 {
	if d.payoffType.Sign()*(s-d.strike) > 0 {
		return 1
	}
	return 0
}

// AmericanCallPut may be exercised at any schedule point up to expiry.
// The schedule is daily unless pointsPerYear says otherwise; 0 means daily.
type AmericanCallPut struct {
	base
	payoffType model.PayoffType
	strike     float64
}

func NewAmericanCallPut(pt model.PayoffType, strike, timeToExp float64, pointsPerYear int) (*AmericanCallPut, error) {
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	if err := validStrike(strike); err != nil {
		return nil, err
	}
	if pointsPerYear < 0 {
		return nil, model.Invalidf("american: points per year %d must be >= 0", pointsPerYear)
	}
	sched, err := model.NewUniformSchedule(timeToExp, pointsPerYear)
	if err != nil {
		return nil, fmt.Errorf("american: %w", err)
	}
	return &AmericanCallPut{base: newBase(sched), payoffType: pt, strike: strike}, nil
}

func (a *AmericanCallPut) Name() string { return "american" }

func (a *AmericanCallPut) NAssets() int { return 1 }

func (a *AmericanCallPut) EvalPath([][]float64) ([]float64, error) {
	return nil, unsupported(a.Name(), "path evaluation")
}

func (a *AmericanCallPut) EvalNode(idx int, spots []float64, cont float64) (model.NodeValue, error) {
	if err := a.checkNode(idx, spots, 1); err != nil {
		return model.NodeValue{}, err
	}
	intrinsic := vanilla(a.payoffType, spots[0], a.strike)
	if idx == a.sched.Last() {
		return exerciseValue(intrinsic), nil
	}
	if intrinsic > cont {
		return model.NodeValue{Value: intrinsic, Action: model.ActionExercise}, nil
	}
	return model.Hold(cont), nil
}

func expirySchedule(timeToExp float64) (model.Schedule, error) {
	if !(timeToExp > 0) || math.IsInf(timeToExp, 0) {
		return model.Schedule{}, fmt.Errorf("time to expiry %v: %w", timeToExp, model.ErrNonPositiveMaturity)
	}
	return model.NewSchedule([]float64{timeToExp})
}

func exerciseValue(v float64) model.NodeValue {
	if v > 0 {
		return model.NodeValue{Value: v, Action: model.ActionExercise}
	}
	return model.Hold(0)
}
