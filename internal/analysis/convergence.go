package analysis

import (
	"fmt"
	"math"
	"time"

	"lattice-pricer/internal/model"
	"lattice-pricer/internal/pde"

	"gonum.org/v1/gonum/stat"
)

// PriceFunc prices one instrument with the given solver settings. It must
// build a fresh product per call since a solved product cannot be re-solved.
type PriceFunc func(p pde.Params) (float64, error)

// Level is one grid of a refinement study.
type Level struct {
	NTimeSteps int
	NSpotNodes int
	Price      float64
	Error      float64 // Price - reference
	Diff       float64 // |Price - previous Price|, 0 on the first level
	Ratio      float64 // previous Diff / Diff, 0 when undefined
	Elapsed    time.Duration
}

// Study summarises a refinement run against a reference price.
type Study struct {
	Reference float64
	Levels    []Level

	// Monotone is true when successive differences strictly decrease.
	Monotone bool
	// Order is log2 of the mean difference ratio: about 1 for a first-order
	// scheme and 2 for a second-order one when both axes are halved.
	Order float64
}

// Converge prices on levels grids, doubling both the time steps and the
// spot intervals of base each time. Spot node counts stay odd so spot
// remains on a node.
func Converge(base pde.Params, levels int, reference float64, price PriceFunc) (*Study, error) {
	if levels < 2 {
		return nil, model.Invalidf("a refinement study needs at least 2 levels")
	}
	if base.NSpotNodes%2 == 0 {
		base.NSpotNodes++
	}

	s := &Study{Reference: reference, Levels: make([]Level, 0, levels)}
	p := base
	for i := 0; i < levels; i++ {
		start := time.Now()
		v, err := price(p)
		if err != nil {
			return nil, fmt.Errorf("level %d (%dx%d): %w", i, p.NTimeSteps, p.NSpotNodes, err)
		}
		lv := Level{
			NTimeSteps: p.NTimeSteps,
			NSpotNodes: p.NSpotNodes,
			Price:      v,
			Error:      v - reference,
			Elapsed:    time.Since(start),
		}
		if i > 0 {
			prev := s.Levels[i-1]
			lv.Diff = math.Abs(v - prev.Price)
			if i > 1 && lv.Diff > 0 {
				lv.Ratio = prev.Diff / lv.Diff
			}
		}
		s.Levels = append(s.Levels, lv)

		p.NTimeSteps *= 2
		p.NSpotNodes = 2*(p.NSpotNodes-1) + 1
	}

	s.Monotone = true
	ratios := make([]float64, 0, levels)
	for i := 2; i < len(s.Levels); i++ {
		if !(s.Levels[i].Diff < s.Levels[i-1].Diff) {
			s.Monotone = false
		}
		if r := s.Levels[i].Ratio; r > 0 {
			ratios = append(ratios, r)
		}
	}
	if len(ratios) > 0 {
		s.Order = math.Log2(stat.Mean(ratios, nil))
	}
	return s, nil
}

// Finest returns the last level.
func (s *Study) Finest() Level {
	return s.Levels[len(s.Levels)-1]
}
