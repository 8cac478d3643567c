package model

import (
	"fmt"
	"math"
)

// MaturityTolerance is how close the last generated schedule point must be to
// maturity before it is snapped instead of followed by an extra knot.
const MaturityTolerance = 1e-8

// DaysPerYear is the default schedule density for daily schedules.
const DaysPerYear = 365

// MaxSchedulePoints caps the length of a generated schedule. A century of
// daily points fits.
const MaxSchedulePoints = 100_000

// Schedule is an immutable, strictly increasing sequence of times in years.
type Schedule struct {
	times []float64
}

// NewSchedule validates and copies times.
func NewSchedule(times []float64) (Schedule, error) {
	if len(times) == 0 {
		return Schedule{}, Invalidf("schedule is empty")
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return Schedule{}, Invalidf("schedule time %d is %v", i, t)
		}
		if i > 0 && t <= times[i-1] {
			return Schedule{}, Invalidf("schedule not strictly increasing at index %d", i)
		}
	}
	if times[len(times)-1] <= 0 {
		return Schedule{}, ErrNonPositiveMaturity
	}
	out := make([]float64, len(times))
	copy(out, times)
	return Schedule{times: out}, nil
}

// NewUniformSchedule builds points i/pointsPerYear from 0 up to maturity.
// If the last generated point falls short of maturity by more than
// MaturityTolerance, maturity is appended; otherwise the last point is
// snapped onto maturity. A pointsPerYear of 0 means daily.
func NewUniformSchedule(maturity float64, pointsPerYear int) (Schedule, error) {
	if !(maturity > 0) || math.IsInf(maturity, 0) {
		return Schedule{}, fmt.Errorf("maturity %v: %w", maturity, ErrNonPositiveMaturity)
	}
	if pointsPerYear < 0 {
		return Schedule{}, Invalidf("points per year %d must be >= 0", pointsPerYear)
	}
	if pointsPerYear == 0 {
		pointsPerYear = DaysPerYear
	}
	density := float64(pointsPerYear)
	if maturity*density > MaxSchedulePoints {
		return Schedule{}, Invalidf("%d points per year over %g years exceeds %d schedule points", pointsPerYear, maturity, MaxSchedulePoints)
	}
	n := int(maturity * density)

	times := make([]float64, 0, n+2)
	for i := 0; i <= n; i++ {
		times = append(times, float64(i)/density)
	}
	if last := times[len(times)-1]; last < maturity-MaturityTolerance {
		times = append(times, maturity)
	} else {
		times[len(times)-1] = maturity
	}
	return Schedule{times: times}, nil
}

// Len returns the number of schedule points.
func (s Schedule) Len() int { return len(s.times) }

// At returns the i-th time.
func (s Schedule) At(i int) float64 { return s.times[i] }

// Times returns a copy of the schedule.
func (s Schedule) Times() []float64 {
	out := make([]float64, len(s.times))
	copy(out, s.times)
	return out
}

// Maturity is the last schedule time.
func (s Schedule) Maturity() float64 {
	if len(s.times) == 0 {
		return 0
	}
	return s.times[len(s.times)-1]
}

// Last is the terminal schedule index.
func (s Schedule) Last() int { return len(s.times) - 1 }

// Intervals counts the steps from time zero through every schedule point.
func (s Schedule) Intervals() int {
	if len(s.times) == 0 {
		return 0
	}
	if s.times[0] <= MaturityTolerance {
		return len(s.times) - 1
	}
	return len(s.times)
}

// Window is a closed time interval [Start, End] in years.
type Window struct {
	Start float64
	End   float64
}

// Contains reports whether t lies in the window, boundaries included.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t <= w.End
}

func (w Window) Validate(name string) error {
	if math.IsNaN(w.Start) || math.IsNaN(w.End) {
		return Invalidf("%s window has NaN bounds", name)
	}
	if w.Start > w.End {
		return Invalidf("%s window start %v after end %v", name, w.Start, w.End)
	}
	return nil
}
