// Package milp describes mixed-integer linear programs and the contract any
// solving engine must satisfy.
//
// A [Problem] is a construction context: callers declare variables, add
// linear constraints and set a linear objective, then hand the finished
// problem to a [Solver]. A Problem is owned by one invocation and is not safe
// for concurrent mutation; once built it is treated as read-only.
//
//	p := milp.NewProblem("example")
//	on := p.AddBinary("on")
//	f := p.AddContinuous("flow", 0, 5)
//	p.AddConstraint("gate", milp.Expr{}.Add(f, 1).Add(on, -5), milp.LessEqual, 0)
//	p.Maximize(milp.Sum(f))
//	sol, err := engine.Solve(ctx, p)
package milp

import (
	"fmt"
	"math"
	"strings"
)

// VarID identifies a variable inside one Problem.
type VarID int

// VarKind is the domain of a variable.
type VarKind uint8

const (
	// Continuous variables take any value in [Lower, Upper].
	Continuous VarKind = iota
	// Binary variables take 0 or 1.
	Binary
)

// String returns the kind name.
func (k VarKind) String() string {
	if k == Binary {
		return "binary"
	}
	return "continuous"
}

// Variable is a declared decision variable.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64 // math.Inf(1) when unbounded above
}

// Term is one coefficient·variable product.
type Term struct {
	Var  VarID
	Coef float64
}

// Expr is a linear expression: the sum of its terms.
// Repeated variables are allowed; engines combine them.
type Expr []Term

// Sum builds an expression with coefficient 1 on every id.
func Sum(ids ...VarID) Expr {
	e := make(Expr, len(ids))
	for i, id := range ids {
		e[i] = Term{Var: id, Coef: 1}
	}
	return e
}

// Add returns e with coef·id appended.
func (e Expr) Add(id VarID, coef float64) Expr {
	return append(e, Term{Var: id, Coef: coef})
}

// Plus returns the concatenation of e and other.
func (e Expr) Plus(other Expr) Expr {
	out := make(Expr, 0, len(e)+len(other))
	out = append(out, e...)
	return append(out, other...)
}

// Scale returns e with every coefficient multiplied by k.
func (e Expr) Scale(k float64) Expr {
	out := make(Expr, len(e))
	for i, t := range e {
		out[i] = Term{Var: t.Var, Coef: t.Coef * k}
	}
	return out
}

// Eval computes the expression value under an assignment.
func (e Expr) Eval(values []float64) float64 {
	var s float64
	for _, t := range e {
		s += t.Coef * values[t.Var]
	}
	return s
}

// Sense is the relation of a constraint.
type Sense uint8

const (
	LessEqual Sense = iota
	Equal
	GreaterEqual
)

// String returns the relation symbol.
func (s Sense) String() string {
	switch s {
	case Equal:
		return "="
	case GreaterEqual:
		return ">="
	default:
		return "<="
	}
}

// Constraint is Expr <sense> RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Satisfied reports whether the constraint holds under values within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Expr.Eval(values)
	switch c.Sense {
	case Equal:
		return math.Abs(lhs-c.RHS) <= tol
	case GreaterEqual:
		return lhs >= c.RHS-tol
	default:
		return lhs <= c.RHS+tol
	}
}

// Problem is a mixed-integer linear program under construction.
type Problem struct {
	name        string
	vars        []Variable
	constraints []Constraint
	objective   Expr
	maximize    bool
}

// NewProblem creates an empty problem. The default objective is to minimize 0.
func NewProblem(name string) *Problem {
	return &Problem{name: name}
}

// Name returns the problem name.
func (p *Problem) Name() string { return p.name }

// AddBinary declares a 0/1 variable.
func (p *Problem) AddBinary(name string) VarID {
	p.vars = append(p.vars, Variable{Name: name, Kind: Binary, Lower: 0, Upper: 1})
	return VarID(len(p.vars) - 1)
}

// AddContinuous declares a continuous variable with bounds [lower, upper].
// Use math.Inf(1) for no upper bound.
func (p *Problem) AddContinuous(name string, lower, upper float64) VarID {
	p.vars = append(p.vars, Variable{Name: name, Kind: Continuous, Lower: lower, Upper: upper})
	return VarID(len(p.vars) - 1)
}

// AddConstraint appends expr <sense> rhs and returns its index.
func (p *Problem) AddConstraint(name string, expr Expr, sense Sense, rhs float64) int {
	p.constraints = append(p.constraints, Constraint{Name: name, Expr: expr, Sense: sense, RHS: rhs})
	return len(p.constraints) - 1
}

// Maximize sets a maximization objective.
func (p *Problem) Maximize(e Expr) {
	p.objective = e
	p.maximize = true
}

// Minimize sets a minimization objective.
func (p *Problem) Minimize(e Expr) {
	p.objective = e
	p.maximize = false
}

// NumVariables returns the number of declared variables.
func (p *Problem) NumVariables() int { return len(p.vars) }

// NumConstraints returns the number of constraints.
func (p *Problem) NumConstraints() int { return len(p.constraints) }

// Variable returns the declaration of id.
func (p *Problem) Variable(id VarID) Variable { return p.vars[id] }

// Variables returns all declarations. The slice must not be modified.
func (p *Problem) Variables() []Variable { return p.vars }

// Constraint returns constraint i.
func (p *Problem) Constraint(i int) Constraint { return p.constraints[i] }

// Constraints returns all constraints. The slice must not be modified.
func (p *Problem) Constraints() []Constraint { return p.constraints }

// Objective returns the objective expression.
func (p *Problem) Objective() Expr { return p.objective }

// IsMaximize reports whether the objective is maximized.
func (p *Problem) IsMaximize() bool { return p.maximize }

// Feasible checks every bound, integrality requirement and constraint
// against values within tol and returns the names of violated items.
func (p *Problem) Feasible(values []float64, tol float64) []string {
	var bad []string
	if len(values) != len(p.vars) {
		return []string{fmt.Sprintf("assignment has %d values, want %d", len(values), len(p.vars))}
	}
	for i, v := range p.vars {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			bad = append(bad, fmt.Sprintf("bound %s", v.Name))
		}
		if v.Kind == Binary && math.Abs(x-math.Round(x)) > tol {
			bad = append(bad, fmt.Sprintf("integrality %s", v.Name))
		}
	}
	for _, c := range p.constraints {
		if !c.Satisfied(values, tol) {
			bad = append(bad, c.Name)
		}
	}
	return bad
}

// String renders the problem in a readable LP-like form. Intended for
// debugging small models.
func (p *Problem) String() string {
	var b strings.Builder
	dir := "minimize"
	if p.maximize {
		dir = "maximize"
	}
	fmt.Fprintf(&b, "%s %s\n", dir, p.formatExpr(p.objective))
	b.WriteString("subject to\n")
	for _, c := range p.constraints {
		fmt.Fprintf(&b, "  %s: %s %s %g\n", c.Name, p.formatExpr(c.Expr), c.Sense, c.RHS)
	}
	b.WriteString("bounds\n")
	for _, v := range p.vars {
		fmt.Fprintf(&b, "  %g <= %s <= %g (%s)\n", v.Lower, v.Name, v.Upper, v.Kind)
	}
	return b.String()
}

func (p *Problem) formatExpr(e Expr) string {
	if len(e) == 0 {
		return "0"
	}
	parts := make([]string, len(e))
	for i, t := range e {
		parts[i] = fmt.Sprintf("%g %s", t.Coef, p.vars[t.Var].Name)
	}
	return strings.Join(parts, " + ")
}
