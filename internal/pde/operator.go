package pde

import (
	"fmt"

	"lattice-pricer/internal/model"

	"gonum.org/v1/gonum/lapack/gonum"
)

// stepper applies one theta step of
//
//	V_t + 0.5*sigma^2*V_xx + (r - q - 0.5*sigma^2)*V_x - r*V = 0
//
// on a uniform log-spot axis. L is stored as a tridiagonal matrix and the
// implicit part is solved with LAPACK's Dgtsv.
type stepper struct {
	n        int
	dx       float64
	boundary Boundary

	lo, di, up []float64 // L
	dl, d, du  []float64 // I - theta*dt*L, clobbered by Dgtsv

	impl gonum.Implementation
}

func newStepper(n int, dx float64, b Boundary) *stepper {
	return &stepper{
		n:        n,
		dx:       dx,
		boundary: b,
		lo:       make([]float64, n),
		di:       make([]float64, n),
		up:       make([]float64, n),
		dl:       make([]float64, n-1),
		d:        make([]float64, n),
		du:       make([]float64, n-1),
	}
}

// setOperator rebuilds L for short rate r, dividend yield q and local
// variance rate sigma2 over the current step.
func (st *stepper) setOperator(r, q, sigma2 float64) {
	n, dx := st.n, st.dx
	mu := r - q - 0.5*sigma2
	a := 0.5 * sigma2 / (dx * dx)
	c := mu / (2 * dx)
	for j := 1; j < n-1; j++ {
		st.lo[j] = a - c
		st.di[j] = -2*a - r
		st.up[j] = a + c
	}

	st.lo[0], st.up[n-1] = 0, 0
	switch st.boundary {
	case BoundaryConstant:
		st.di[0], st.up[0] = -r, 0
		st.lo[n-1], st.di[n-1] = 0, -r
	default:
		st.di[0], st.up[0] = -mu/dx-r, mu/dx
		st.lo[n-1], st.di[n-1] = -mu/dx, mu/dx-r
	}
}

// checkStability rejects explicit-leaning steps that violate
// (1 - 2*theta) * sigma^2 * dt / dx^2 <= 1.
func (st *stepper) checkStability(sigma2, dt, theta float64) error {
	if theta >= 0.5 {
		return nil
	}
	ratio := (1 - 2*theta) * sigma2 * dt / (st.dx * st.dx)
	if ratio > 1+1e-12 {
		return fmt.Errorf("theta %.3g, sigma^2*dt/dx^2 = %.4g: %w", theta, ratio/(1-2*theta), model.ErrUnstableScheme)
	}
	return nil
}

// step rolls next (the slice at t+dt) back to out (the slice at t).
func (st *stepper) step(next, out []float64, dt, theta float64) error {
	n := st.n
	w := (1 - theta) * dt
	for j := 0; j < n; j++ {
		lv := st.di[j] * next[j]
		if j > 0 {
			lv += st.lo[j] * next[j-1]
		}
		if j < n-1 {
			lv += st.up[j] * next[j+1]
		}
		out[j] = next[j] + w*lv
	}
	if theta == 0 {
		return nil
	}

	w = theta * dt
	for j := 0; j < n; j++ {
		st.d[j] = 1 - w*st.di[j]
		if j < n-1 {
			st.du[j] = -w * st.up[j]
			st.dl[j] = -w * st.lo[j+1]
		}
	}
	if ok := st.impl.Dgtsv(n, 1, st.dl, st.d, st.du, out, 1); !ok {
		return fmt.Errorf("tridiagonal solve, dt=%.4g: %w", dt, model.ErrSingularSystem)
	}
	return nil
}
