// Package branchbound is a pure-Go engine for mixed-integer linear programs.
//
// It runs depth-first branch and bound over the binary variables of a
// [milp.Problem]. Each node's LP relaxation is solved with gonum's simplex
// after a small presolve that removes fixed variables, redundant bound rows
// and dependent equalities. The engine targets the compact models built by
// the layout optimizer; it makes no attempt at cutting planes or heuristics.
package branchbound

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/matzehuels/oreflow/pkg/milp"
)

// Defaults for Options fields left at zero.
const (
	DefaultIntTol        = 1e-6
	DefaultGapTol        = 1e-6
	DefaultLPTol         = 1e-9
	DefaultProgressEvery = 500
)

// Progress is a snapshot of a running search.
type Progress struct {
	Nodes     int
	Pruned    int
	Incumbent float64 // objective of the best assignment so far, in the problem's own sense
	HasValue  bool    // false until the first incumbent is found
	Improved  bool    // true when this report was triggered by a new incumbent
	Elapsed   time.Duration
}

// Options configure the engine. The zero value is usable.
type Options struct {
	// TimeLimit stops the search after this long. Zero means no limit beyond
	// the context deadline.
	TimeLimit time.Duration

	// NodeLimit stops the search after this many nodes. Zero means no limit.
	NodeLimit int

	IntTol float64 // distance from an integer that still counts as integral
	GapTol float64 // absolute gap under which a node cannot improve the incumbent
	LPTol  float64 // tolerance handed to the simplex

	// Progress, if set, is called on every new incumbent and every
	// ProgressEvery nodes. It runs on the solving goroutine.
	Progress      func(Progress)
	ProgressEvery int
}

func (o *Options) setDefaults() {
	if o.IntTol <= 0 {
		o.IntTol = DefaultIntTol
	}
	if o.GapTol <= 0 {
		o.GapTol = DefaultGapTol
	}
	if o.LPTol <= 0 {
		o.LPTol = DefaultLPTol
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
}

// Solver implements milp.Solver.
type Solver struct {
	opts Options
}

var _ milp.Solver = (*Solver)(nil)

// New returns an engine configured by opts.
func New(opts Options) *Solver {
	opts.setDefaults()
	return &Solver{opts: opts}
}

// fixing pins one binary to 0 or 1.
type fixing struct {
	v   int
	val float64
}

// node is a subproblem: the root bounds plus its fixings.
type node struct {
	fix []fixing
}

// Solve runs branch and bound on p.
func (s *Solver) Solve(ctx context.Context, p *milp.Problem) (*milp.Solution, error) {
	start := time.Now()
	if s.opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TimeLimit)
		defer cancel()
	}

	rel, sign, err := relax(p, s.opts.LPTol)
	if err != nil {
		return nil, err
	}
	vars := p.Variables()
	sol := &milp.Solution{Status: milp.StatusUnknown}

	if rel.n == 0 {
		// Nothing to decide; every constraint is a comparison of constants.
		if len(p.Feasible(nil, feasTol)) > 0 {
			sol.Status = milp.StatusInfeasible
		} else {
			sol.Status = milp.StatusOptimal
			sol.Values = []float64{}
		}
		sol.Stats.Duration = time.Since(start)
		return sol, nil
	}

	rootLo := make([]float64, rel.n)
	rootHi := make([]float64, rel.n)
	var binaries []int
	for j, v := range vars {
		rootLo[j], rootHi[j] = v.Lower, v.Upper
		if v.Kind == milp.Binary {
			binaries = append(binaries, j)
			rootLo[j] = math.Max(rootLo[j], 0)
			rootHi[j] = math.Min(rootHi[j], 1)
		}
		if rootLo[j] > rootHi[j]+feasTol {
			sol.Status = milp.StatusInfeasible
			sol.Stats.Duration = time.Since(start)
			return sol, nil
		}
	}

	var (
		incumbent    []float64
		incumbentObj = math.Inf(1) // internal minimization
		bestBound    = math.Inf(-1)
		stats        milp.Stats
		stack        = []node{{}}
		lo           = make([]float64, rel.n)
		hi           = make([]float64, rel.n)
	)

	report := func(improved bool) {
		if s.opts.Progress == nil {
			return
		}
		pr := Progress{
			Nodes:    stats.Nodes,
			Pruned:   stats.Pruned,
			Improved: improved,
			Elapsed:  time.Since(start),
		}
		if incumbent != nil {
			pr.Incumbent = external(sign, incumbentObj)
			pr.HasValue = true
		}
		s.opts.Progress(pr)
	}

	finish := func(status milp.Status) *milp.Solution {
		sol.Status = status
		if incumbent != nil {
			sol.Values = incumbent
			sol.Objective = external(sign, incumbentObj)
		}
		stats.Duration = time.Since(start)
		switch {
		case status == milp.StatusOptimal:
			stats.Bound = sol.Objective
		case !math.IsInf(bestBound, 0):
			stats.Bound = external(sign, bestBound)
		}
		sol.Stats = stats
		return sol
	}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return finish(milp.StatusTimeout), nil
		}
		if s.opts.NodeLimit > 0 && stats.Nodes >= s.opts.NodeLimit {
			return finish(milp.StatusUnknown), nil
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stats.Nodes++
		if stats.Nodes%s.opts.ProgressEvery == 0 {
			report(false)
		}

		copy(lo, rootLo)
		copy(hi, rootHi)
		for _, f := range nd.fix {
			lo[f.v], hi[f.v] = f.val, f.val
		}

		res, err := rel.solve(lo, hi)
		stats.LPs++
		if err != nil {
			return nil, fmt.Errorf("branch and bound node %d: %w", stats.Nodes, err)
		}
		switch res.status {
		case lpInfeasible:
			if stats.Nodes == 1 {
				return finish(milp.StatusInfeasible), nil
			}
			stats.Pruned++
			continue
		case lpUnbounded:
			if stats.Nodes == 1 {
				return finish(milp.StatusUnbounded), nil
			}
			// A child of a bounded root cannot be unbounded; treat it as a
			// numerical artefact and drop the node.
			stats.Pruned++
			continue
		}
		if stats.Nodes == 1 {
			bestBound = res.obj
		}
		if incumbent != nil && res.obj >= incumbentObj-s.opts.GapTol {
			stats.Pruned++
			continue
		}

		branch, frac := -1, 0.0
		for _, j := range binaries {
			v := res.x[j]
			f := math.Abs(v - math.Round(v))
			if f > s.opts.IntTol && f > frac {
				branch, frac = j, f
			}
		}

		if branch < 0 {
			x := res.x
			for _, j := range binaries {
				x[j] = math.Round(x[j])
			}
			var obj float64
			for j, cj := range rel.c {
				obj += cj * x[j]
			}
			if incumbent == nil || obj < incumbentObj {
				incumbent, incumbentObj = x, obj
				report(true)
			}
			continue
		}

		// Depth first; the child nearer the LP value is pushed last so it is
		// explored first.
		near := math.Round(res.x[branch])
		far := 1 - near
		stack = append(stack,
			node{fix: appendFixing(nd.fix, fixing{branch, far})},
			node{fix: appendFixing(nd.fix, fixing{branch, near})},
		)
	}

	if incumbent == nil {
		return finish(milp.StatusInfeasible), nil
	}
	return finish(milp.StatusOptimal), nil
}

// external maps an internal (minimized) objective value back to the
// problem's sense. Zero is always returned as +0.
func external(sign, v float64) float64 {
	if v == 0 {
		return 0
	}
	return sign * v
}

func appendFixing(fix []fixing, f fixing) []fixing {
	out := make([]fixing, len(fix), len(fix)+1)
	copy(out, fix)
	return append(out, f)
}

// relax converts p into internal minimization form. Duplicate terms are
// merged and zero coefficients dropped; ≥ rows are negated into ≤ rows.
// The returned sign maps internal objective values back to p's sense.
func relax(p *milp.Problem, tol float64) (*relaxation, float64, error) {
	n := p.NumVariables()
	rel := &relaxation{n: n, c: make([]float64, n), tol: tol}

	sign := 1.0
	if p.IsMaximize() {
		sign = -1
	}
	for _, t := range p.Objective() {
		if int(t.Var) < 0 || int(t.Var) >= n {
			return nil, 0, fmt.Errorf("objective references unknown variable %d", t.Var)
		}
		rel.c[t.Var] += sign * t.Coef
	}

	for i, c := range p.Constraints() {
		rw, err := mergeTerms(c.Expr, n)
		if err != nil {
			return nil, 0, fmt.Errorf("constraint %d (%s): %w", i, c.Name, err)
		}
		rw.rhs = c.RHS
		switch c.Sense {
		case milp.Equal:
			rel.eq = append(rel.eq, rw)
		case milp.GreaterEqual:
			for k := range rw.vals {
				rw.vals[k] = -rw.vals[k]
			}
			rw.rhs = -rw.rhs
			rel.le = append(rel.le, rw)
		default:
			rel.le = append(rel.le, rw)
		}
	}
	return rel, sign, nil
}

func mergeTerms(e milp.Expr, n int) (row, error) {
	acc := make(map[int]float64, len(e))
	order := make([]int, 0, len(e))
	for _, t := range e {
		j := int(t.Var)
		if j < 0 || j >= n {
			return row{}, fmt.Errorf("unknown variable %d", t.Var)
		}
		if _, ok := acc[j]; !ok {
			order = append(order, j)
		}
		acc[j] += t.Coef
	}
	var rw row
	for _, j := range order {
		if v := acc[j]; v != 0 {
			rw.cols = append(rw.cols, j)
			rw.vals = append(rw.vals, v)
		}
	}
	return rw, nil
}
