package product

import (
	"fmt"
	"sync"

	"lattice-pricer/internal/model"
)

type solveStatus int

const (
	statusIdle solveStatus = iota
	statusSolving
	statusSettled
)

// PayoffState is the per-schedule-index record a contract keeps from its
// last solve. A solver claims it before stepping and settles the whole series
// in one call when it finishes. A settled state refuses further claims until
// Reset, so re-solving a contract fails fast instead of overwriting results.
type PayoffState struct {
	mu      sync.Mutex
	status  solveStatus
	amounts []float64
}

func newPayoffState(n int) *PayoffState {
	return &PayoffState{amounts: make([]float64, n)}
}

// Claim reserves the state for one solve.
func (s *PayoffState) Claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case statusSolving:
		return fmt.Errorf("solve in progress: %w", model.ErrContractInUse)
	case statusSettled:
		return fmt.Errorf("already solved, reset before solving again: %w", model.ErrContractInUse)
	}
	s.status = statusSolving
	return nil
}

// Release drops a claim without recording anything. Used when a solve fails.
func (s *PayoffState) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == statusSolving {
		s.status = statusIdle
	}
}

// Settle stores the completed series and ends the claim.
func (s *PayoffState) Settle(amounts []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != statusSolving {
		return fmt.Errorf("settle without an active claim: %w", model.ErrContractInUse)
	}
	if len(amounts) != len(s.amounts) {
		return fmt.Errorf("settle %d amounts into %d slots: %w", len(amounts), len(s.amounts), model.ErrLengthMismatch)
	}
	copy(s.amounts, amounts)
	s.status = statusSettled
	return nil
}

// Reset clears a settled state so the contract can be solved again.
func (s *PayoffState) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == statusSolving {
		return fmt.Errorf("reset during solve: %w", model.ErrContractInUse)
	}
	for i := range s.amounts {
		s.amounts[i] = 0
	}
	s.status = statusIdle
	return nil
}

// Settled reports whether a solve has recorded its series.
func (s *PayoffState) Settled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == statusSettled
}

// PayAmounts returns a copy of the recorded series.
func (s *PayoffState) PayAmounts() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.amounts))
	copy(out, s.amounts)
	return out
}

// Len is the number of schedule slots.
func (s *PayoffState) Len() int {
	return len(s.amounts)
}
