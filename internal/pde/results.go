package pde

import (
	"fmt"

	"lattice-pricer/internal/model"
)

// ErrNotRetained is returned for time slices dropped because the solve ran
// without FullHistory.
var ErrNotRetained = fmt.Errorf("time slice not retained, solve with full history: %w", model.ErrNotFound)

// Results is the output of one solve.
//
// Values[i][j] is the value at Times[i] and Spots[0][j]. Without FullHistory
// only the t=0 slice is kept, so Times and Values have length 1 and Actions
// is nil.
type Results struct {
	Prices      []float64
	Times       []float64
	Spots       [][]float64
	Values      [][]float64
	Actions     [][]model.Action
	FullHistory bool
}

// Price is the t=0 value at the market spot.
func (r *Results) Price() float64 {
	if len(r.Prices) == 0 {
		return 0
	}
	return r.Prices[0]
}

// SpotAxis returns the spot nodes of one asset.
func (r *Results) SpotAxis(asset int) ([]float64, error) {
	if asset < 0 || asset >= len(r.Spots) {
		return nil, model.Invalidf("asset %d out of range [0,%d)", asset, len(r.Spots))
	}
	return r.Spots[asset], nil
}

// Slice returns the values at Times[i] of the full time axis. Index 0 is
// always available.
func (r *Results) Slice(i int) ([]float64, error) {
	if i < 0 {
		return nil, model.Invalidf("time index %d is negative", i)
	}
	if i >= len(r.Values) {
		if !r.FullHistory && i > 0 {
			return nil, fmt.Errorf("time index %d: %w", i, ErrNotRetained)
		}
		return nil, model.Invalidf("time index %d out of range [0,%d)", i, len(r.Values))
	}
	return r.Values[i], nil
}

// ValueAt interpolates the t=0 slice at spot.
func (r *Results) ValueAt(spot float64) (float64, error) {
	if len(r.Values) == 0 || len(r.Spots) == 0 {
		return 0, model.Invalidf("empty results")
	}
	return interpolate(r.Spots[0], r.Values[0], spot)
}
