package market

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"lattice-pricer/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdTimes = []float64{1.0 / 12, 0.25, 0.5, 0.75, 1, 2, 3, 4, 5, 10}
	usdRates = []float64{0.01, 0.02, 0.03, 0.035, 0.04, 0.045, 0.05, 0.055, 0.0575, 0.065}
)

func TestYieldCurveSpotRatesRoundTrip(t *testing.T) {
	t.Parallel()

	yc, err := NewYieldCurve(usdTimes, usdRates, SpotRate)
	require.NoError(t, err)

	for i, T := range usdTimes {
		assert.InDelta(t, usdRates[i], yc.SpotRate(T), 1e-12, "T=%v", T)
		assert.InDelta(t, math.Exp(-usdRates[i]*T), yc.Discount(T), 1e-12)
	}
	assert.Equal(t, 1.0, yc.Discount(0))

	// Forward between knots 1 and 2: (0.045*2 - 0.04*1) / 1 = 0.05
	assert.InDelta(t, 0.05, yc.FwdRate(1, 2), 1e-12)
	assert.InDelta(t, yc.Discount(2)/yc.Discount(1), yc.FwdDiscount(1, 2), 1e-12)
	// Flat before the first knot and flat forward past the last one.
	assert.InDelta(t, 0.01, yc.SpotRate(0.01), 1e-12)
	assert.InDelta(t, yc.FwdRate(5, 10), yc.FwdRate(10, 20), 1e-12)
}

func TestYieldCurveInputTypesAgree(t *testing.T) {
	t.Parallel()

	spot, err := NewYieldCurve(usdTimes, usdRates, SpotRate)
	require.NoError(t, err)

	fwds := make([]float64, len(usdTimes))
	dfs := make([]float64, len(usdTimes))
	prev := 0.0
	for i, T := range usdTimes {
		fwds[i] = spot.FwdRate(prev, T)
		dfs[i] = spot.Discount(T)
		prev = T
	}
	fwd, err := NewYieldCurve(usdTimes, fwds, FwdRate)
	require.NoError(t, err)
	zero, err := NewYieldCurve(usdTimes, dfs, ZeroBond)
	require.NoError(t, err)

	for _, T := range []float64{0.1, 0.6, 1.5, 2.75, 7, 12} {
		assert.InDelta(t, spot.Discount(T), fwd.Discount(T), 1e-12, "fwd T=%v", T)
		assert.InDelta(t, spot.Discount(T), zero.Discount(T), 1e-12, "zero T=%v", T)
	}
}

func TestYieldCurveRejectsBadInputs(t *testing.T) {
	t.Parallel()

	_, err := NewYieldCurve([]float64{1, 2}, []float64{0.01}, SpotRate)
	require.ErrorIs(t, err, model.ErrLengthMismatch)

	_, err = NewYieldCurve([]float64{1}, []float64{0.01}, InputType(7))
	require.ErrorIs(t, err, model.ErrUnknownInputType)

	_, err = NewYieldCurve([]float64{2, 1}, []float64{0.01, 0.02}, SpotRate)
	require.ErrorIs(t, err, model.ErrConfiguration)

	_, err = NewYieldCurve([]float64{1}, []float64{0}, ZeroBond)
	require.ErrorIs(t, err, model.ErrInvalidParameter)

	_, err = ParseInputType("par")
	require.ErrorIs(t, err, model.ErrUnknownInputType)
	it, err := ParseInputType("2")
	require.NoError(t, err)
	assert.Equal(t, ZeroBond, it)
}

func TestVolatilityCurve(t *testing.T) {
	t.Parallel()

	flat, err := FlatVolatility(0.4)
	require.NoError(t, err)
	assert.InDelta(t, 0.16*0.5, flat.ForwardVariance(0.5, 1), 1e-12)
	assert.InDelta(t, 0.4, flat.SpotVol(3), 1e-12)
	assert.InDelta(t, 0.4, flat.FwdVol(2, 3), 1e-12)

	spot, err := NewVolatilityCurve([]float64{1, 2}, []float64{0.2, 0.3}, SpotVol)
	require.NoError(t, err)
	// total variance 0.04 at 1y, 0.18 at 2y
	assert.InDelta(t, 0.14, spot.ForwardVariance(1, 2), 1e-12)
	assert.InDelta(t, math.Sqrt(0.14), spot.FwdVol(1, 2), 1e-12)

	fwd, err := NewVolatilityCurve([]float64{1, 2}, []float64{0.2, math.Sqrt(0.14)}, FwdVol)
	require.NoError(t, err)
	assert.InDelta(t, spot.SpotVol(2), fwd.SpotVol(2), 1e-12)

	_, err = NewVolatilityCurve([]float64{1, 2}, []float64{0.3, 0.1}, SpotVol)
	require.ErrorIs(t, err, model.ErrInvalidParameter, "decreasing total variance")
	_, err = NewVolatilityCurve([]float64{1}, []float64{-0.1}, FwdVol)
	require.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = ParseVolType("local")
	require.ErrorIs(t, err, model.ErrUnknownInputType)
}

func TestRegistryGetSetVersions(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.YieldCurves().Get("USD")
	require.ErrorIs(t, err, model.ErrNotFound)

	yc, err := FlatYieldCurve(0.03)
	require.NoError(t, err)

	tag, err := reg.YieldCurves().Set("usd", yc)
	require.NoError(t, err)
	assert.Equal(t, Tag{Name: "USD", Version: 1}, tag)
	assert.Equal(t, "USD@1", tag.String())

	got, err := reg.YieldCurves().Get(" Usd ")
	require.NoError(t, err)
	assert.Same(t, yc, got)

	tag, err = reg.YieldCurves().Set("USD", yc)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tag.Version)

	_, err = reg.YieldCurves().Set("  ", yc)
	require.ErrorIs(t, err, model.ErrInvalidParameter)

	vol, err := FlatVolatility(0.2)
	require.NoError(t, err)
	_, err = reg.Volatilities().Set("SPX", vol)
	require.NoError(t, err)
	assert.Equal(t, Contents{YieldCurves: []string{"USD"}, Volatilities: []string{"SPX"}}, reg.List())

	assert.True(t, reg.YieldCurves().Delete("usd"))
	assert.False(t, reg.YieldCurves().Delete("usd"))
	tag, err = reg.YieldCurves().Set("USD", yc)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), tag.Version, "versions survive deletes")

	reg.Clear()
	assert.Empty(t, reg.List().YieldCurves)
	assert.Empty(t, reg.List().Volatilities)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	yc, err := FlatYieldCurve(0.01)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("C%d", i%4)
			_, _ = reg.YieldCurves().Set(name, yc)
			_, _ = reg.YieldCurves().Get(name)
			_ = reg.List()
		}(i)
	}
	wg.Wait()
	assert.Len(t, reg.YieldCurves().List(), 4)
	v, ok := reg.YieldCurves().Version("C0")
	require.True(t, ok)
	assert.Equal(t, uint64(4), v)
}

func TestRegistryLoadIsAllOrNothing(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	snap := &model.MarketSnapshot{
		YieldCurves: []model.CurveQuote{
			{Name: "USD", Times: usdTimes, Values: usdRates, InputType: "spot"},
			{Name: "EUR", Times: []float64{1}, Values: []float64{0.02, 0.03}},
		},
	}
	_, err := reg.Load(snap)
	require.ErrorIs(t, err, model.ErrLengthMismatch)
	assert.Empty(t, reg.List().YieldCurves)

	snap.YieldCurves = snap.YieldCurves[:1]
	snap.Volatilities = []model.CurveQuote{{Name: "spx", Times: []float64{1}, Values: []float64{0.2}}}
	tags, err := reg.Load(snap)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "USD", Version: 1}, {Name: "SPX", Version: 1}}, tags)
}
