package pde

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"time"

	"lattice-pricer/internal/model"
	"lattice-pricer/internal/product"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/interp"
)

// DiscountCurve is the part of a yield curve the solver reads.
type DiscountCurve interface {
	Discount(t float64) float64
	FwdRate(t1, t2 float64) float64
}

// Volatility is the part of a volatility term structure the solver reads.
type Volatility interface {
	ForwardVariance(t1, t2 float64) float64
}

// Market is the single-asset Black-Scholes market a solve runs against.
type Market struct {
	Spot     float64
	DivYield float64
	Discount DiscountCurve
	Vol      Volatility
}

func (m Market) validate() error {
	if !(m.Spot > 0) || math.IsInf(m.Spot, 0) {
		return model.Invalidf("spot must be finite and > 0")
	}
	if math.IsNaN(m.DivYield) || math.IsInf(m.DivYield, 0) {
		return model.Invalidf("dividend yield must be finite")
	}
	if m.Discount == nil {
		return model.Invalidf("discount curve is nil")
	}
	if m.Vol == nil {
		return model.Invalidf("volatility is nil")
	}
	return nil
}

// State is the solver lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateGridBuilt
	StateStepping
	StateSolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateGridBuilt:
		return "grid_built"
	case StateStepping:
		return "stepping"
	case StateSolved:
		return "solved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrSolverUsed is returned by Solve on a solver that already ran.
var ErrSolverUsed = errors.New("pde: solver already used")

type Option func(*Solver)

// WithLogger sets the logger for grid and solve events. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.log = l
		}
	}
}

// Solver values one single-asset product by backward induction on a theta
// finite-difference grid in log-spot. A Solver is single-use.
type Solver struct {
	prod   product.Product
	mkt    Market
	params Params
	log    *slog.Logger

	state State
	time  timeAxis
	spot  spotAxis
}

// NewSolver checks inputs; the grid is built by Solve.
func NewSolver(prod product.Product, mkt Market, params Params, opts ...Option) (*Solver, error) {
	if prod == nil {
		return nil, model.Invalidf("product is nil")
	}
	if n := prod.NAssets(); n != 1 {
		return nil, fmt.Errorf("%s has %d assets, the PDE solver handles 1: %w", prod.Name(), n, model.ErrUnsupportedOperation)
	}
	if err := mkt.validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Workers == 0 {
		params.Workers = 1
	}
	s := &Solver{
		prod:   prod,
		mkt:    mkt,
		params: params,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Solver) State() State { return s.state }

// Solve builds the grid, claims the product's payoff state, steps back to
// t=0 and settles the per-index amounts. On failure the claim is released
// and the product is left untouched.
func (s *Solver) Solve() (*Results, error) {
	if s.state != StateUninitialized {
		return nil, fmt.Errorf("%w (state %s)", ErrSolverUsed, s.state)
	}
	start := time.Now()
	name := s.prod.Name()

	if err := s.buildGrid(); err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("pde %s: %w", name, err)
	}
	s.state = StateGridBuilt
	s.log.Debug("pde grid built",
		"product", name,
		"time_nodes", len(s.time.times),
		"spot_nodes", len(s.spot.spots),
		"dx", s.spot.dx,
		"s_min", s.spot.spots[0],
		"s_max", s.spot.spots[len(s.spot.spots)-1],
		"theta", s.params.Theta,
	)

	ps := s.prod.State()
	if err := ps.Claim(); err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("pde %s: %w", name, err)
	}
	s.state = StateStepping

	res, amounts, err := s.run()
	if err != nil {
		ps.Release()
		s.state = StateFailed
		s.log.Debug("pde solve failed", "product", name, "err", err)
		return nil, fmt.Errorf("pde %s: %w", name, err)
	}
	if err := ps.Settle(amounts); err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("pde %s: %w", name, err)
	}
	s.state = StateSolved
	s.log.Debug("pde solved", "product", name, "price", res.Price(), "elapsed", time.Since(start))
	return res, nil
}

func (s *Solver) buildGrid() error {
	sched := s.prod.Schedule()
	if sched.Len() == 0 {
		return model.Invalidf("empty schedule")
	}
	if err := checkTruncation(s.params.NStdDevs, s.params.TailProbability); err != nil {
		return err
	}
	ta, err := buildTimeAxis(sched, s.params.NTimeSteps)
	if err != nil {
		return err
	}
	T := sched.Maturity()
	totalVar := s.mkt.Vol.ForwardVariance(0, T)
	if !(totalVar > 0) || math.IsInf(totalVar, 0) {
		return fmt.Errorf("total variance %g to %g: %w", totalVar, T, model.ErrDegenerateVariance)
	}
	s.time = ta
	s.spot = buildSpotAxis(s.mkt.Spot, totalVar, s.params.NStdDevs, s.params.NSpotNodes)
	return nil
}

func (s *Solver) run() (*Results, []float64, error) {
	times, knots := s.time.times, s.time.knots
	n := len(s.spot.spots)
	last := len(times) - 1
	amounts := make([]float64, s.prod.Schedule().Len())

	cur := make([]float64, n)
	next := make([]float64, n)
	acts := make([]model.Action, n)

	var hist [][]float64
	var histActs [][]model.Action
	record := func(i int) error {
		if err := checkFinite(cur, times[i]); err != nil {
			return err
		}
		if k := knots[i]; k >= 0 {
			v, err := s.valueAtSpot(cur)
			if err != nil {
				return err
			}
			amounts[k] = v
		}
		if s.params.FullHistory {
			hist = append(hist, append([]float64(nil), cur...))
			histActs = append(histActs, append([]model.Action(nil), acts...))
		} else if i == 0 {
			hist = append(hist, append([]float64(nil), cur...))
		}
		return nil
	}

	// Terminal slice: no continuation value.
	if err := s.evalSlice(knots[last], cur, acts); err != nil {
		return nil, nil, err
	}
	if err := record(last); err != nil {
		return nil, nil, err
	}

	st := newStepper(n, s.spot.dx, s.params.Boundary)
	for i := last - 1; i >= 0; i-- {
		cur, next = next, cur
		t1, t2 := times[i], times[i+1]
		dt := t2 - t1
		v := s.mkt.Vol.ForwardVariance(t1, t2)
		if !(v > 0) {
			return nil, nil, fmt.Errorf("variance %g over [%.6g, %.6g]: %w", v, t1, t2, model.ErrDegenerateVariance)
		}
		theta := s.params.Theta
		if last-1-i < s.params.SmoothingSteps {
			theta = ThetaImplicit
		}
		sigma2 := v / dt
		if err := st.checkStability(sigma2, dt, theta); err != nil {
			return nil, nil, err
		}
		st.setOperator(s.mkt.Discount.FwdRate(t1, t2), s.mkt.DivYield, sigma2)
		if err := st.step(next, cur, dt, theta); err != nil {
			return nil, nil, err
		}

		if k := knots[i]; k >= 0 {
			if err := s.evalSlice(k, cur, acts); err != nil {
				return nil, nil, err
			}
		} else {
			for j := range acts {
				acts[j] = model.ActionHold
			}
		}
		if err := record(i); err != nil {
			return nil, nil, err
		}
	}

	// hist was filled from maturity back to t=0.
	slices.Reverse(hist)
	slices.Reverse(histActs)
	res := &Results{
		Times:       append([]float64(nil), times...),
		Spots:       [][]float64{append([]float64(nil), s.spot.spots...)},
		Values:      hist,
		Actions:     histActs,
		FullHistory: s.params.FullHistory,
	}
	if !s.params.FullHistory {
		res.Times = res.Times[:1]
	}
	price, err := s.valueAtSpot(hist[0])
	if err != nil {
		return nil, nil, err
	}
	res.Prices = []float64{price}
	return res, amounts, nil
}

// evalSlice overlays the product's rights at schedule index k onto vals in
// place. vals holds continuation values on entry; the terminal call passes
// zeros. Nodes are split across Workers goroutines.
func (s *Solver) evalSlice(k int, vals []float64, acts []model.Action) error {
	n := len(vals)
	workers := s.params.Workers
	if workers <= 1 || n < 2*workers {
		return s.evalRange(k, vals, acts, 0, n)
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error { return s.evalRange(k, vals, acts, lo, hi) })
	}
	return g.Wait()
}

func (s *Solver) evalRange(k int, vals []float64, acts []model.Action, lo, hi int) error {
	spot := make([]float64, 1)
	for j := lo; j < hi; j++ {
		spot[0] = s.spot.spots[j]
		nv, err := s.prod.EvalNode(k, spot, vals[j])
		if err != nil {
			return fmt.Errorf("schedule index %d node %d: %w", k, j, err)
		}
		vals[j] = nv.Value
		acts[j] = nv.Action
	}
	return nil
}

// valueAtSpot interpolates a slice at the market spot.
func (s *Solver) valueAtSpot(vals []float64) (float64, error) {
	return interpolate(s.spot.spots, vals, s.mkt.Spot)
}

func interpolate(xs, ys []float64, x float64) (float64, error) {
	if x < xs[0] || x > xs[len(xs)-1] {
		return 0, model.Invalidf("spot %g outside grid [%g, %g]", x, xs[0], xs[len(xs)-1])
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return 0, err
	}
	return pl.Predict(x), nil
}

func checkFinite(vals []float64, t float64) error {
	for j, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("node %d at t=%.6g is %v: %w", j, t, v, model.ErrNonFiniteValue)
		}
	}
	return nil
}
