package product

import (
	"fmt"
	"math"

	"lattice-pricer/internal/model"
)

// Product is a contract that a pricer can value. It exposes its schedule and
// two valuation callbacks: one driven by a simulated path, one driven by a
// lattice node during backward induction.
//
// EvalNode must be a pure function of its arguments so a solver can evaluate
// distinct nodes of one time slice concurrently.
type Product interface {
	Name() string
	NAssets() int
	Schedule() model.Schedule

	// EvalPath values one realized path. path[i][a] is the spot of asset a
	// at schedule index i. The returned amounts are indexed like Schedule.
	EvalPath(path [][]float64) ([]float64, error)

	// EvalNode overlays the contract's rights on the continuation value at
	// schedule index idx. cont is ignored at the terminal index.
	EvalNode(idx int, spots []float64, cont float64) (model.NodeValue, error)

	// State holds the per-index amounts recorded by the last solve.
	State() *PayoffState
}

type base struct {
	sched model.Schedule
	state *PayoffState
}

func newBase(s model.Schedule) base {
	return base{sched: s, state: newPayoffState(s.Len())}
}

func (b *base) Schedule() model.Schedule { return b.sched }

func (b *base) State() *PayoffState { return b.state }

func (b *base) checkIndex(idx int) error {
	if idx < 0 || idx >= b.sched.Len() {
		return model.Invalidf("schedule index %d out of range [0,%d)", idx, b.sched.Len())
	}
	return nil
}

func (b *base) checkNode(idx int, spots []float64, nAssets int) error {
	if err := b.checkIndex(idx); err != nil {
		return err
	}
	if len(spots) != nAssets {
		return fmt.Errorf("got %d spots for %d assets: %w", len(spots), nAssets, model.ErrLengthMismatch)
	}
	return nil
}

func (b *base) checkPath(path [][]float64, nAssets int) error {
	if len(path) != b.sched.Len() {
		return fmt.Errorf("path has %d rows, schedule has %d: %w", len(path), b.sched.Len(), model.ErrLengthMismatch)
	}
	for i, row := range path {
		if len(row) != nAssets {
			return fmt.Errorf("path row %d has %d assets, want %d: %w", i, len(row), nAssets, model.ErrLengthMismatch)
		}
	}
	return nil
}

func unsupported(name, op string) error {
	return fmt.Errorf("%s: %s: %w", name, op, model.ErrUnsupportedOperation)
}

func validStrike(k float64) error {
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return model.Invalidf("strike must be finite and >= 0")
	}
	return nil
}

func vanilla(pt model.PayoffType, s, k float64) float64 {
	return math.Max(pt.Sign()*(s-k), 0)
}
