package data

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lattice-pricer/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketJSON = `{
  "as_of": "2026-01-02",
  "yield_curves": [
    {"name": "USD", "times": [0.5, 1, 2], "values": [0.03, 0.035, 0.04], "input_type": "spot"},
    {"name": "EUR", "times": [1], "values": [0.98], "input_type": "zero"}
  ],
  "volatilities": [
    {"name": "SPX", "times": [1, 2], "values": [0.2, 0.22]}
  ]
}`

func TestLoadMarketJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "market.json")
	require.NoError(t, os.WriteFile(path, []byte(marketJSON), 0o644))

	snap, err := LoadMarketJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02", snap.AsOf)
	require.Len(t, snap.YieldCurves, 2)
	assert.Equal(t, []float64{0.03, 0.035, 0.04}, snap.YieldCurves[0].Values)
	assert.Equal(t, "zero", snap.YieldCurves[1].InputType)
	require.Len(t, snap.Volatilities, 1)
	assert.Empty(t, snap.Volatilities[0].InputType)

	_, err = LoadMarketJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = DecodeMarketJSON([]byte(`{"yield_curves": 3}`))
	require.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestMergeMarket(t *testing.T) {
	t.Parallel()

	base, err := DecodeMarketJSON([]byte(marketJSON))
	require.NoError(t, err)
	override := &model.MarketSnapshot{
		YieldCurves: []model.CurveQuote{
			{Name: "usd", Times: []float64{1}, Values: []float64{0.05}},
			{Name: "GBP", Times: []float64{1}, Values: []float64{0.045}},
		},
	}

	merged := MergeMarket(base, override)
	assert.Equal(t, "2026-01-02", merged.AsOf)
	require.Len(t, merged.YieldCurves, 3)
	assert.Equal(t, []float64{0.05}, merged.YieldCurves[0].Values)
	assert.Equal(t, "EUR", merged.YieldCurves[1].Name)
	assert.Equal(t, "GBP", merged.YieldCurves[2].Name)
	assert.Len(t, merged.Volatilities, 1)

	assert.Equal(t, []float64{0.03, 0.035, 0.04}, base.YieldCurves[0].Values, "base is not modified")
	assert.Empty(t, MergeMarket(nil, nil).YieldCurves)
}

func TestResultCacheTTL(t *testing.T) {
	t.Parallel()

	c := NewResultCache[float64](time.Minute, 0)
	defer c.Close()
	clock := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	id := c.Add("req-1", 10.45)
	v, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, 10.45, v)

	foundID, v, ok := c.Find("req-1")
	require.True(t, ok)
	assert.Equal(t, id, foundID)
	assert.Equal(t, 10.45, v)

	_, ok = c.Get("nope")
	assert.False(t, ok)

	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get(id)
	assert.False(t, ok, "expired entries are never returned")
	_, _, ok = c.Find("req-1")
	assert.False(t, ok)

	assert.Equal(t, 1, c.Len())
	c.sweep()
	assert.Equal(t, 0, c.Len())
}

func TestResultCacheConcurrentUseAndClose(t *testing.T) {
	t.Parallel()

	c := NewResultCache[int](time.Hour, time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := c.Add("", i)
			v, ok := c.Get(id)
			assert.True(t, ok)
			assert.Equal(t, i, v)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	c.Close()
	c.Close()
}

func TestRequestKeyIsDeterministic(t *testing.T) {
	t.Parallel()

	type req struct {
		Product string
		Strike  float64
	}
	a, err := RequestKey(req{"european", 100})
	require.NoError(t, err)
	b, err := RequestKey(req{"european", 100})
	require.NoError(t, err)
	c, err := RequestKey(req{"european", 101})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)

	_, err = RequestKey(func() {})
	require.Error(t, err)
}
