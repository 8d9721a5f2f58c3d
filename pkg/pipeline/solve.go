package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/milp"
	"github.com/matzehuels/oreflow/pkg/milp/branchbound"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/observability"
)

// cachedSolution is the cache encoding of an optimal solution. Only optimal
// solutions are cached, so the status is implied.
type cachedSolution struct {
	Objective float64   `json:"objective"`
	Values    []float64 `json:"values"`
	Nodes     int       `json:"nodes"`
	Pruned    int       `json:"pruned"`
	LPs       int       `json:"lps"`
}

// NewSolver returns the default engine configured from opts.
func NewSolver(ctx context.Context, opts Options) milp.Solver {
	hooks := observability.Pipeline()
	return branchbound.New(branchbound.Options{
		TimeLimit: opts.Timeout,
		NodeLimit: opts.NodeLimit,
		Progress: func(p branchbound.Progress) {
			hooks.OnSolveProgress(ctx, p.Nodes, p.Incumbent, p.HasValue)
			if opts.Progress != nil {
				opts.Progress(p)
			}
		},
	})
}

// Solve runs solver on m. Optimal solutions are checked against every model
// invariant and, unless opts.KeepIdle is set, pruned of idle placements.
// A nil solver means the default engine.
func Solve(ctx context.Context, solver milp.Solver, m *model.Model, opts Options) (*milp.Solution, error) {
	if solver == nil {
		solver = NewSolver(ctx, opts)
	}
	hooks := observability.Pipeline()
	st := m.Stats()
	hooks.OnSolveStart(ctx, st.Variables, st.Constraints)
	start := time.Now()

	sol, err := solver.Solve(ctx, m.Problem())
	if err != nil {
		err = errors.Wrap(errors.ErrCodeSolverFailure, err, "solve %s", m.Problem().Name())
		hooks.OnSolveComplete(ctx, "error", 0, 0, time.Since(start), err)
		return nil, err
	}
	sol = m.Normalize(sol)
	if sol.IsOptimal() {
		if err := m.Validate(sol, validationTol); err != nil {
			hooks.OnSolveComplete(ctx, sol.Status.String(), sol.Objective, sol.Stats.Nodes, time.Since(start), err)
			return nil, err
		}
		if opts.ShouldPrune() {
			sol = m.Prune(sol)
		}
	}
	hooks.OnSolveComplete(ctx, sol.Status.String(), sol.Objective, sol.Stats.Nodes, time.Since(start), nil)
	return sol, nil
}

func encodeSolution(sol *milp.Solution) ([]byte, error) {
	return json.Marshal(cachedSolution{
		Objective: sol.Objective,
		Values:    sol.Values,
		Nodes:     sol.Stats.Nodes,
		Pruned:    sol.Stats.Pruned,
		LPs:       sol.Stats.LPs,
	})
}

// decodeSolution restores a cached solution and re-checks it against m.
// Entries that no longer fit the model are rejected.
func decodeSolution(data []byte, m *model.Model) (*milp.Solution, error) {
	var c cachedSolution
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	sol := &milp.Solution{
		Status:    milp.StatusOptimal,
		Objective: c.Objective,
		Values:    c.Values,
		Stats: milp.Stats{
			Nodes:  c.Nodes,
			Pruned: c.Pruned,
			LPs:    c.LPs,
			Bound:  c.Objective,
		},
	}
	if err := m.Validate(sol, validationTol); err != nil {
		return nil, err
	}
	return sol, nil
}
