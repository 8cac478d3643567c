package product

import (
	"fmt"
	"math"

	"lattice-pricer/internal/model"
)

// ConvertibleBondParams describes a zero-coupon convertible bond.
// Units:
// - FaceValue: redemption amount paid at maturity
// - Maturity and window bounds: years from today
// - ConversionRatio: shares received per bond on conversion
// - CallStrike: price at which the issuer may redeem early; 0 disables the call
// - PointsPerYear: schedule density; 0 means daily
type ConvertibleBondParams struct {
	FaceValue       float64
	Maturity        float64
	ConversionRatio float64
	Conversion      model.Window
	CallStrike      float64
	Call            model.Window
	PointsPerYear   int
}

func (p ConvertibleBondParams) Validate() error {
	if !(p.Maturity > 0) || math.IsInf(p.Maturity, 0) {
		return fmt.Errorf("convertible bond: %w", model.ErrNonPositiveMaturity)
	}
	if !(p.FaceValue > 0) || math.IsInf(p.FaceValue, 0) {
		return model.Invalidf("FaceValue must be > 0")
	}
	if p.ConversionRatio < 0 || math.IsNaN(p.ConversionRatio) || math.IsInf(p.ConversionRatio, 0) {
		return model.Invalidf("ConversionRatio must be finite and >= 0")
	}
	if p.CallStrike < 0 || math.IsNaN(p.CallStrike) || math.IsInf(p.CallStrike, 0) {
		return model.Invalidf("CallStrike must be finite and >= 0")
	}
	if err := p.Conversion.Validate("conversion"); err != nil {
		return err
	}
	if err := p.Call.Validate("call"); err != nil {
		return err
	}
	if p.PointsPerYear < 0 {
		return model.Invalidf("PointsPerYear must be >= 0")
	}
	return nil
}

// ConvertibleBond pays FaceValue at maturity. Inside the conversion window the
// holder may take ConversionRatio shares instead; inside the call window the
// issuer may redeem at CallStrike. Lattice evaluation only.
type ConvertibleBond struct {
	base
	p ConvertibleBondParams
}

func NewConvertibleBond(p ConvertibleBondParams) (*ConvertibleBond, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sched, err := model.NewUniformSchedule(p.Maturity, p.PointsPerYear)
	if err != nil {
		return nil, err
	}
	return &ConvertibleBond{base: newBase(sched), p: p}, nil
}

func (b *ConvertibleBond) Name() string { return "convertible" }

func (b *ConvertibleBond) NAssets() int { return 1 }

func (b *ConvertibleBond) Params() ConvertibleBondParams { return b.p }

func (b *ConvertibleBond) EvalPath([][]float64) ([]float64, error) {
	return nil, unsupported(b.Name(), "path evaluation")
}

// EvalNode applies redemption at maturity and, before maturity, caps the
// continuation value at the call strike and then floors it at the conversion
// value. The floor runs last so an issuer call never suppresses conversion.
func (b *ConvertibleBond) EvalNode(idx int, spots []float64, cont float64) (model.NodeValue, error) {
	if err := b.checkNode(idx, spots, 1); err != nil {
		return model.NodeValue{}, err
	}
	t := b.sched.At(idx)
	convertible := b.p.Conversion.Contains(t)
	conversion := 0.0
	if convertible {
		conversion = b.p.ConversionRatio * spots[0]
	}

	if idx == b.sched.Last() {
		if convertible && conversion > b.p.FaceValue {
			return model.NodeValue{Value: conversion, Action: model.ActionConvert}, nil
		}
		return model.NodeValue{Value: b.p.FaceValue, Action: model.ActionRedeem}, nil
	}

	out := model.Hold(cont)
	if b.p.CallStrike > 0 && b.p.Call.Contains(t) && out.Value > b.p.CallStrike {
		out = model.NodeValue{Value: b.p.CallStrike, Action: model.ActionCall}
	}
	if convertible && conversion > out.Value {
		out = model.NodeValue{Value: conversion, Action: model.ActionConvert}
	}
	return out, nil
}
