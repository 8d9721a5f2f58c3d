package milp

import (
	"context"
	"time"
)

// Status is the outcome of a solve.
type Status int

const (
	// StatusUnknown means the engine stopped without proving anything, for
	// example after hitting its node limit.
	StatusUnknown Status = iota
	// StatusOptimal means Values hold a proven optimal assignment.
	StatusOptimal
	// StatusInfeasible means no assignment satisfies the constraints.
	StatusInfeasible
	// StatusUnbounded means the objective can improve without limit.
	StatusUnbounded
	// StatusTimeout is the time-limited member of the unknown family: the
	// deadline passed before optimality was proven.
	StatusTimeout
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Solution is what an engine returns.
type Solution struct {
	Status Status

	// Objective is the objective value of Values. Zero when Values is nil.
	Objective float64

	// Values holds one value per variable. Set for StatusOptimal. For
	// StatusUnknown and StatusTimeout it holds the best incumbent found, if
	// any, which is feasible but not proven optimal.
	Values []float64

	Stats Stats
}

// Stats describes the work an engine performed.
type Stats struct {
	Nodes    int           // branch-and-bound nodes processed
	Pruned   int           // nodes discarded by bound or infeasibility
	LPs      int           // LP relaxations solved
	Bound    float64       // best proven bound on the objective
	Duration time.Duration // wall time
}

// IsOptimal reports whether the solution is a proven optimum.
func (s *Solution) IsOptimal() bool {
	return s != nil && s.Status == StatusOptimal
}

// Value returns the value of id, or 0 when the solution has no values.
func (s *Solution) Value(id VarID) float64 {
	if s == nil || int(id) >= len(s.Values) {
		return 0
	}
	return s.Values[id]
}

// Solver is any engine that can solve a Problem.
//
// Solve blocks until the engine finishes or ctx is done. Non-optimal outcomes
// are reported through Solution.Status, not through the error; the error is
// reserved for engine failures such as numerical breakdown or unsupported
// problem features.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, p *Problem) (*Solution, error)

// Solve calls f(ctx, p).
func (f SolverFunc) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	return f(ctx, p)
}
