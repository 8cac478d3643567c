package pde

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"

	"lattice-pricer/internal/analytic"
	"lattice-pricer/internal/market"
	"lattice-pricer/internal/model"
	"lattice-pricer/internal/product"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	spot0 = 100.0
	rate  = 0.04
	div   = 0.02
	vol   = 0.4
)

func flatMarket(t *testing.T, r, q, sigma float64) Market {
	t.Helper()
	yc, err := market.FlatYieldCurve(r)
	require.NoError(t, err)
	vc, err := market.FlatVolatility(sigma)
	require.NoError(t, err)
	return Market{Spot: spot0, DivYield: q, Discount: yc, Vol: vc}
}

func params(nt, nx int, theta float64) Params {
	p := DefaultParams()
	p.NTimeSteps = nt
	p.NSpotNodes = nx
	p.NStdDevs = 5
	p.Theta = theta
	return p
}

func solve(t *testing.T, prod product.Product, mkt Market, p Params) *Results {
	t.Helper()
	s, err := NewSolver(prod, mkt, p)
	require.NoError(t, err)
	res, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, StateSolved, s.State())
	return res
}

func europeanCall(t *testing.T) *product.EuropeanCallPut {
	t.Helper()
	e, err := product.NewEuropeanCallPut(model.Call, 100, 1)
	require.NoError(t, err)
	return e
}

func TestEuropeanImplicitConverges(t *testing.T) {
	t.Parallel()

	bs, err := analytic.EuroBS(model.Call, analytic.Inputs{
		Spot: spot0, Strike: 100, TimeToExp: 1, IntRate: rate, DivYield: div, Vol: vol,
	})
	require.NoError(t, err)

	mkt := flatMarket(t, rate, div, vol)
	levels := [][2]int{{50, 101}, {100, 201}, {200, 401}, {400, 801}}
	prices := make([]float64, len(levels))
	for i, lv := range levels {
		prices[i] = solve(t, europeanCall(t), mkt, params(lv[0], lv[1], ThetaImplicit)).Price()
	}

	for i := 2; i < len(prices); i++ {
		prev := math.Abs(prices[i-1] - prices[i-2])
		cur := math.Abs(prices[i] - prices[i-1])
		assert.Less(t, cur, prev, "refinement %d: %v", i, prices)
	}
	assert.InDelta(t, bs.Price, prices[len(prices)-1], 0.1)
}

func TestCrankNicolsonWithSmoothing(t *testing.T) {
	t.Parallel()

	bs, err := analytic.EuroBS(model.Call, analytic.Inputs{
		Spot: spot0, Strike: 100, TimeToExp: 1, IntRate: rate, DivYield: div, Vol: vol,
	})
	require.NoError(t, err)

	p := params(200, 201, ThetaCrankNicolson)
	p.SmoothingSteps = 2
	res := solve(t, europeanCall(t), flatMarket(t, rate, div, vol), p)
	assert.InDelta(t, bs.Price, res.Price(), 0.05)
}

func TestExplicitSchemeStableAndUnstable(t *testing.T) {
	t.Parallel()

	mkt := flatMarket(t, rate, div, vol)
	bs, err := analytic.EuroBS(model.Call, analytic.Inputs{
		Spot: spot0, Strike: 100, TimeToExp: 1, IntRate: rate, DivYield: div, Vol: vol,
	})
	require.NoError(t, err)

	// dx = 0.04, sigma^2 dt / dx^2 = 0.05
	res := solve(t, europeanCall(t), mkt, params(2000, 101, ThetaExplicit))
	assert.InDelta(t, bs.Price, res.Price(), 0.25)

	s, err := NewSolver(europeanCall(t), mkt, params(10, 201, ThetaExplicit))
	require.NoError(t, err)
	_, err = s.Solve()
	require.ErrorIs(t, err, model.ErrUnstableScheme)
	require.ErrorIs(t, err, model.ErrNumerical)
	assert.Equal(t, StateFailed, s.State())
}

func TestAmericanPutDominatesEuropean(t *testing.T) {
	t.Parallel()

	mkt := flatMarket(t, 0.06, 0, vol)
	p := params(100, 201, ThetaImplicit)

	euro, err := product.NewEuropeanCallPut(model.Put, 100, 1)
	require.NoError(t, err)
	amer, err := product.NewAmericanCallPut(model.Put, 100, 1, 50)
	require.NoError(t, err)

	pe := solve(t, euro, mkt, p).Price()
	pa := solve(t, amer, mkt, p).Price()
	assert.Greater(t, pa, pe)

	// Settled per-index amounts: index 0 sits at t=0 so it is the price.
	amounts := amer.State().PayAmounts()
	require.Len(t, amounts, amer.Schedule().Len())
	assert.InDelta(t, pa, amounts[0], 1e-12)
	assert.True(t, amer.State().Settled())
}

func TestConvertibleBondBounds(t *testing.T) {
	t.Parallel()

	cb, err := product.NewConvertibleBond(product.ConvertibleBondParams{
		FaceValue:       100,
		Maturity:        1,
		ConversionRatio: 1,
		Conversion:      model.Window{Start: 0, End: 1},
		CallStrike:      110,
		Call:            model.Window{Start: 0, End: 1},
		PointsPerYear:   12,
	})
	require.NoError(t, err)

	p := params(120, 101, ThetaImplicit)
	p.FullHistory = true
	res := solve(t, cb, flatMarket(t, rate, div, vol), p)

	assert.GreaterOrEqual(t, res.Price(), spot0-1e-9)
	assert.LessOrEqual(t, res.Price(), 110+1e-9)

	// At every node of the t=0 slice the holder gets at least conversion value
	// and the issuer caps anything above the call strike.
	t0, err := res.Slice(0)
	require.NoError(t, err)
	for j, s := range res.Spots[0] {
		assert.GreaterOrEqual(t, t0[j], s-1e-9)
		assert.LessOrEqual(t, t0[j], math.Max(110, s)+1e-9)
	}
}

func TestParallelNodeEvaluationMatchesSerial(t *testing.T) {
	t.Parallel()

	mkt := flatMarket(t, 0.05, 0.01, 0.3)
	run := func(workers int) *Results {
		amer, err := product.NewAmericanCallPut(model.Put, 95, 1, 52)
		require.NoError(t, err)
		p := params(104, 151, ThetaCrankNicolson)
		p.SmoothingSteps = 2
		p.Workers = workers
		p.FullHistory = true
		return solve(t, amer, mkt, p)
	}

	serial := run(1)
	parallel := run(4)
	assert.Equal(t, serial.Price(), parallel.Price())
	assert.Equal(t, serial.Values, parallel.Values)
	assert.Equal(t, serial.Actions, parallel.Actions)
}

func TestSolveFailureModes(t *testing.T) {
	t.Parallel()

	mkt := flatMarket(t, rate, div, vol)

	narrow := params(50, 51, ThetaImplicit)
	narrow.NStdDevs = 3
	amer, err := product.NewAmericanCallPut(model.Put, 100, 1, 12)
	require.NoError(t, err)
	coarse := params(6, 51, ThetaImplicit)
	// Conversion value overflows float64 on the upper part of the spot axis.
	overflow, err := product.NewConvertibleBond(product.ConvertibleBondParams{
		FaceValue:       100,
		Maturity:        1,
		ConversionRatio: 1e307,
		Conversion:      model.Window{Start: 0, End: 1},
		CallStrike:      110,
		Call:            model.Window{Start: 0, End: 1},
		PointsPerYear:   12,
	})
	require.NoError(t, err)

	cases := []struct {
		name string
		prod product.Product
		mkt  Market
		p    Params
		want error
	}{
		{"truncation", europeanCall(t), mkt, narrow, model.ErrTruncationTooNarrow},
		{"coarse", amer, mkt, coarse, model.ErrTimeStepTooCoarse},
		{"zero vol", europeanCall(t), flatMarket(t, rate, div, 0), params(50, 51, ThetaImplicit), model.ErrDegenerateVariance},
		{"non-finite", overflow, mkt, params(24, 51, ThetaImplicit), model.ErrNonFiniteValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSolver(tc.prod, tc.mkt, tc.p)
			require.NoError(t, err)
			_, err = s.Solve()
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, model.ErrNumerical)
			assert.False(t, tc.prod.State().Settled(), "failed solve must not settle")
		})
	}

	// The claim was released, so the contract solves once inputs are fixed.
	res := solve(t, amer, mkt, params(12, 51, ThetaImplicit))
	assert.Greater(t, res.Price(), 0.0)
}

func TestResolveRequiresReset(t *testing.T) {
	t.Parallel()

	mkt := flatMarket(t, rate, div, vol)
	e := europeanCall(t)
	first := solve(t, e, mkt, params(50, 51, ThetaImplicit))

	s, err := NewSolver(e, mkt, params(50, 51, ThetaImplicit))
	require.NoError(t, err)
	_, err = s.Solve()
	require.ErrorIs(t, err, model.ErrContractInUse)

	require.NoError(t, e.State().Reset())
	again := solve(t, e, mkt, params(50, 51, ThetaImplicit))
	assert.Equal(t, first.Price(), again.Price())
}

func TestSolverIsSingleUse(t *testing.T) {
	t.Parallel()

	s, err := NewSolver(europeanCall(t), flatMarket(t, rate, div, vol), params(50, 51, ThetaImplicit))
	require.NoError(t, err)
	_, err = s.Solve()
	require.NoError(t, err)
	_, err = s.Solve()
	require.ErrorIs(t, err, ErrSolverUsed)
}

func TestNewSolverRejectsInputs(t *testing.T) {
	t.Parallel()

	mkt := flatMarket(t, rate, div, vol)
	basket, err := product.NewAsianBasketCallPut(model.Call, 100, []float64{0.5, 1}, []float64{1, 1})
	require.NoError(t, err)

	_, err = NewSolver(basket, mkt, DefaultParams())
	require.ErrorIs(t, err, model.ErrUnsupportedOperation)

	_, err = NewSolver(nil, mkt, DefaultParams())
	require.ErrorIs(t, err, model.ErrInvalidParameter)

	bad := mkt
	bad.Spot = 0
	_, err = NewSolver(europeanCall(t), bad, DefaultParams())
	require.ErrorIs(t, err, model.ErrInvalidParameter)

	p := DefaultParams()
	p.Theta = 1.5
	_, err = NewSolver(europeanCall(t), mkt, p)
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestResultsHistoryAndCSV(t *testing.T) {
	t.Parallel()

	mkt := flatMarket(t, rate, div, vol)

	p := params(20, 21, ThetaImplicit)
	p.FullHistory = true
	full := solve(t, europeanCall(t), mkt, p)

	require.Len(t, full.Values, len(full.Times))
	require.Len(t, full.Actions, len(full.Times))
	assert.Equal(t, 0.0, full.Times[0])
	assert.InDelta(t, 1.0, full.Times[len(full.Times)-1], 1e-12)

	spots, err := full.SpotAxis(0)
	require.NoError(t, err)
	assert.Len(t, spots, 21)
	assert.InDelta(t, spot0, spots[10], 1e-9, "odd node count keeps spot on the middle node")
	_, err = full.SpotAxis(1)
	require.ErrorIs(t, err, model.ErrInvalidParameter)

	terminal, err := full.Slice(len(full.Times) - 1)
	require.NoError(t, err)
	for j, s := range spots {
		assert.InDelta(t, math.Max(s-100, 0), terminal[j], 1e-12)
	}

	v, err := full.ValueAt(spot0)
	require.NoError(t, err)
	assert.InDelta(t, full.Price(), v, 1e-12)
	_, err = full.ValueAt(spots[0] / 2)
	require.ErrorIs(t, err, model.ErrInvalidParameter)

	var buf bytes.Buffer
	require.NoError(t, full.EncodeCSV(&buf))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1+len(full.Times)*len(spots))
	assert.Equal(t, []string{"time_index", "time", "spot_index", "spot", "value", "action"}, rows[0])

	p.FullHistory = false
	last := solve(t, europeanCall(t), mkt, p)
	assert.Equal(t, full.Price(), last.Price())
	require.Len(t, last.Values, 1)
	assert.Nil(t, last.Actions, "actions are kept only with full history")
	buf.Reset()
	require.NoError(t, last.EncodeCSV(&buf))
	rows, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+len(spots))
	assert.Equal(t, "", rows[1][5])
	_, err = last.Slice(1)
	require.ErrorIs(t, err, ErrNotRetained)
	require.ErrorIs(t, err, model.ErrNotFound)
}
