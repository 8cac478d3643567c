package pde

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"lattice-pricer/internal/model"
)

// Boundary selects the rule applied at the two ends of the spot axis, where
// the central-difference stencil is undefined.
type Boundary string

const (
	// BoundaryLinear assumes V is linear in log-spot (V_xx = 0) and keeps the
	// drift with a one-sided difference.
	BoundaryLinear Boundary = "linear"
	// BoundaryConstant assumes V is flat (V_x = V_xx = 0): pure discounting.
	BoundaryConstant Boundary = "constant"
)

// Named theta values.
const (
	ThetaExplicit      = 0.0
	ThetaCrankNicolson = 0.5
	ThetaImplicit      = 1.0
)

// Grid size limits checked by Validate. A full-history solve keeps at most
// about 2*NTimeSteps+1 slices, since every schedule interval needs a step.
const (
	MaxTimeSteps    = 100_000
	MaxSpotNodes    = 20_001
	MaxHistoryNodes = 10_000_000 // NTimeSteps*NSpotNodes with FullHistory
	MaxWorkers      = 256
)

// Params is the solver configuration bundle.
type Params struct {
	NTimeSteps int     // minimum number of time steps to maturity
	NSpotNodes int     // nodes on the spot axis, odd keeps spot on a node
	NStdDevs   float64 // half-width of the spot axis in terminal std devs
	Theta      float64 // 0 explicit, 0.5 Crank-Nicolson, 1 implicit

	FullHistory     bool     // keep every time slice in Results
	Boundary        Boundary // spot-axis boundary rule
	TailProbability float64  // max probability mass allowed outside the axis
	SmoothingSteps  int      // fully implicit steps after the terminal slice
	Workers         int      // goroutines evaluating nodes within a step
}

// DefaultParams mirrors a 50x50 Crank-Nicolson grid four std devs wide.
func DefaultParams() Params {
	return Params{
		NTimeSteps:      50,
		NSpotNodes:      51,
		NStdDevs:        4,
		Theta:           ThetaCrankNicolson,
		Boundary:        BoundaryLinear,
		TailProbability: 1e-3,
		Workers:         1,
	}
}

func (p Params) Validate() error {
	if p.NTimeSteps < 1 || p.NTimeSteps > MaxTimeSteps {
		return model.Invalidf("NTIMESTEPS must be in [1, %d]", MaxTimeSteps)
	}
	if p.NSpotNodes < 3 || p.NSpotNodes > MaxSpotNodes {
		return model.Invalidf("NSPOTNODES must be in [3, %d]", MaxSpotNodes)
	}
	if p.FullHistory && p.NTimeSteps*p.NSpotNodes > MaxHistoryNodes {
		return model.Invalidf("full history of %dx%d nodes exceeds %d", p.NTimeSteps, p.NSpotNodes, MaxHistoryNodes)
	}
	if !(p.NStdDevs > 0) || math.IsInf(p.NStdDevs, 0) {
		return model.Invalidf("NSTDDEVS must be > 0")
	}
	if !(p.Theta >= 0 && p.Theta <= 1) {
		return model.Invalidf("THETA must be in [0, 1]")
	}
	if p.Boundary != BoundaryLinear && p.Boundary != BoundaryConstant {
		return fmt.Errorf("boundary %q: %w", p.Boundary, model.ErrUnknownInputType)
	}
	if !(p.TailProbability > 0 && p.TailProbability < 1) {
		return model.Invalidf("TAILPROB must be in (0, 1)")
	}
	if p.SmoothingSteps < 0 {
		return model.Invalidf("SMOOTHING must be >= 0")
	}
	if p.Workers < 0 || p.Workers > MaxWorkers {
		return model.Invalidf("WORKERS must be in [0, %d]", MaxWorkers)
	}
	return nil
}

// ThetaForScheme maps a scheme name to its theta.
func ThetaForScheme(name string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "explicit":
		return ThetaExplicit, nil
	case "implicit":
		return ThetaImplicit, nil
	case "crank-nicolson", "cn", "crank_nicolson":
		return ThetaCrankNicolson, nil
	}
	return 0, fmt.Errorf("scheme %q: %w", name, model.ErrUnknownInputType)
}

// ParseParams reads a named option set such as
// {"NTIMESTEPS": 50, "NSPOTNODES": 50, "NSTDDEVS": 4, "THETA": 0.5}
// on top of DefaultParams. Keys are case-insensitive; unknown keys fail.
// THETA wins over SCHEME when both are given.
func ParseParams(m map[string]any) (Params, error) {
	p := DefaultParams()
	var scheme string
	thetaSet := false
	for k, v := range m {
		var err error
		switch strings.ToUpper(strings.TrimSpace(k)) {
		case "NTIMESTEPS":
			p.NTimeSteps, err = asInt(v)
		case "NSPOTNODES":
			p.NSpotNodes, err = asInt(v)
		case "NSTDDEVS":
			p.NStdDevs, err = asFloat(v)
		case "THETA":
			p.Theta, err = asFloat(v)
			thetaSet = true
		case "SCHEME":
			scheme = fmt.Sprint(v)
		case "ALLRESULTS", "FULLHISTORY":
			p.FullHistory, err = asBool(v)
		case "BOUNDARY":
			p.Boundary = Boundary(strings.ToLower(fmt.Sprint(v)))
		case "TAILPROB":
			p.TailProbability, err = asFloat(v)
		case "SMOOTHING":
			p.SmoothingSteps, err = asInt(v)
		case "WORKERS":
			p.Workers, err = asInt(v)
		default:
			return Params{}, model.Invalidf("unknown PDE parameter %q", k)
		}
		if err != nil {
			return Params{}, model.Invalidf("PDE parameter %s: %v", k, err)
		}
	}
	if scheme != "" && !thetaSet {
		theta, err := ThetaForScheme(scheme)
		if err != nil {
			return Params{}, err
		}
		p.Theta = theta
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}

func asInt(v any) (int, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return int(f), nil
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	default:
		f, err := asFloat(v)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}
