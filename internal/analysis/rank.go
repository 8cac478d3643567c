package analysis

import (
	"math"
	"sort"

	"lattice-pricer/internal/pde"
)

// Scheme names a theta value.
type Scheme struct {
	Name  string
	Theta float64
}

// DefaultSchemes are the three classic theta schemes.
var DefaultSchemes = []Scheme{
	{Name: "explicit", Theta: pde.ThetaExplicit},
	{Name: "crank-nicolson", Theta: pde.ThetaCrankNicolson},
	{Name: "implicit", Theta: pde.ThetaImplicit},
}

type RankedScheme struct {
	Scheme
	Price    float64
	AbsError float64
	Err      error // set when the scheme failed, e.g. an unstable explicit step
}

// RankSchemes prices with each scheme on the same grid and sorts ascending
// by absolute error against reference. Failed schemes sort last.
func RankSchemes(base pde.Params, reference float64, schemes []Scheme, price PriceFunc) []RankedScheme {
	out := make([]RankedScheme, 0, len(schemes))
	for _, sc := range schemes {
		p := base
		p.Theta = sc.Theta
		r := RankedScheme{Scheme: sc}
		v, err := price(p)
		if err != nil {
			r.Err = err
			r.Price = math.NaN()
			r.AbsError = math.Inf(1)
		} else {
			r.Price = v
			r.AbsError = math.Abs(v - reference)
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AbsError < out[j].AbsError
	})
	return out
}
