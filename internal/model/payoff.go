package model

import (
	"fmt"
	"strings"
)

// PayoffType selects call (+1) or put (-1) payoffs.
type PayoffType int

const (
	Call PayoffType = 1
	Put  PayoffType = -1
)

func (p PayoffType) String() string {
	switch p {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return fmt.Sprintf("PayoffType(%d)", int(p))
	}
}

// Sign is +1 for calls and -1 for puts.
func (p PayoffType) Sign() float64 { return float64(p) }

func (p PayoffType) Validate() error {
	if p != Call && p != Put {
		return fmt.Errorf("payoff type %d: %w", int(p), ErrUnknownInputType)
	}
	return nil
}

// ParsePayoffType accepts "call"/"put" or the numeric codes 1/-1.
func ParsePayoffType(s string) (PayoffType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "1", "+1":
		return Call, nil
	case "put", "p", "-1":
		return Put, nil
	}
	return 0, fmt.Errorf("payoff type %q: %w", s, ErrUnknownInputType)
}
