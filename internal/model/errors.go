package model

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the pricing core wraps exactly one
// of these, so callers can branch with errors.Is without knowing the detail.
var (
	ErrConfiguration        = errors.New("configuration error")
	ErrNumerical            = errors.New("numerical error")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrNotFound             = errors.New("not found")
)

// Configuration errors.
var (
	ErrNonPositiveMaturity = fmt.Errorf("%w: maturity must be > 0", ErrConfiguration)
	ErrLengthMismatch      = fmt.Errorf("%w: array lengths do not match", ErrConfiguration)
	ErrUnknownInputType    = fmt.Errorf("%w: unknown input type", ErrConfiguration)
	ErrInvalidParameter    = fmt.Errorf("%w: invalid parameter", ErrConfiguration)
	ErrContractInUse       = fmt.Errorf("%w: contract already solved or being solved", ErrConfiguration)
)

// Numerical errors.
var (
	ErrDegenerateVariance  = fmt.Errorf("%w: non-positive variance", ErrNumerical)
	ErrSingularSystem      = fmt.Errorf("%w: singular tridiagonal system", ErrNumerical)
	ErrUnstableScheme      = fmt.Errorf("%w: explicit scheme unstable for step sizes", ErrNumerical)
	ErrTruncationTooNarrow = fmt.Errorf("%w: truncation width too narrow for tail probability", ErrNumerical)
	ErrTimeStepTooCoarse   = fmt.Errorf("%w: time steps too coarse for schedule", ErrNumerical)
	ErrNonFiniteValue      = fmt.Errorf("%w: non-finite node value", ErrNumerical)
)

// Invalidf wraps ErrInvalidParameter with a formatted detail message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
