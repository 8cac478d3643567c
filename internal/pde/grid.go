package pde

import (
	"fmt"
	"math"

	"lattice-pricer/internal/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// timeAxis holds every solver time node and, for each, the schedule index
// that lands on it (or -1 for refinement sub-steps).
type timeAxis struct {
	times []float64
	knots []int
}

// buildTimeAxis puts every schedule point on the axis and splits each gap
// into equal sub-steps no longer than maturity/nSteps.
//
// nSteps below the number of schedule intervals is too coarse. A rule on the
// shortest schedule interval guards the same thing: no interval may be
// skipped. Because every schedule point is a node, even the shortest interval
// gets its own step, so counting intervals is enough.
func buildTimeAxis(sched model.Schedule, nSteps int) (timeAxis, error) {
	if iv := sched.Intervals(); nSteps < iv {
		return timeAxis{}, fmt.Errorf("%d time steps for %d schedule intervals: %w", nSteps, iv, model.ErrTimeStepTooCoarse)
	}
	T := sched.Maturity()
	dtMax := T / float64(nSteps)

	ax := timeAxis{
		times: make([]float64, 1, nSteps+sched.Len()+1),
		knots: make([]int, 1, nSteps+sched.Len()+1),
	}
	ax.knots[0] = -1
	start := 0
	if sched.At(0) <= model.MaturityTolerance {
		ax.knots[0] = 0
		start = 1
	}

	prev := 0.0
	for k := start; k < sched.Len(); k++ {
		t := sched.At(k)
		gap := t - prev
		m := int(math.Ceil(gap/dtMax - 1e-9))
		if m < 1 {
			m = 1
		}
		for j := 1; j < m; j++ {
			ax.times = append(ax.times, prev+gap*float64(j)/float64(m))
			ax.knots = append(ax.knots, -1)
		}
		ax.times = append(ax.times, t)
		ax.knots = append(ax.knots, k)
		prev = t
	}
	return ax, nil
}

// spotAxis is uniform in log-spot and centred on the current spot.
type spotAxis struct {
	x     []float64
	spots []float64
	dx    float64
}

func buildSpotAxis(spot, totalVar, nStdDevs float64, n int) spotAxis {
	half := nStdDevs * math.Sqrt(totalVar)
	x := floats.Span(make([]float64, n), math.Log(spot)-half, math.Log(spot)+half)
	spots := make([]float64, n)
	for i, xi := range x {
		spots[i] = math.Exp(xi)
	}
	return spotAxis{x: x, spots: spots, dx: 2 * half / float64(n-1)}
}

// checkTruncation fails when more than tailProb of the terminal log-spot
// distribution falls outside +/- nStdDevs.
func checkTruncation(nStdDevs, tailProb float64) error {
	outside := 2 * distuv.UnitNormal.Survival(nStdDevs)
	if outside > tailProb {
		return fmt.Errorf("%g std devs leave %.3g outside the grid, limit %.3g: %w",
			nStdDevs, outside, tailProb, model.ErrTruncationTooNarrow)
	}
	return nil
}
