package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/milp"
)

// Violation is one invariant broken by an assignment.
type Violation struct {
	Invariant string     `json:"invariant"`
	At        grid.Coord `json:"at"`
	Detail    string     `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s at %s: %s", v.Invariant, v.At, v.Detail)
}

// Violations checks the physical invariants of a layout against values:
//
//   - placements are 0 or 1
//   - flows lie within their bounds and are zero unless gated on
//   - at most one belt or one covering machine per cell
//   - each cell's belt output equals its inflow
//   - total machine output equals total boundary export
//
// It returns nil when every invariant holds within tol.
func (m *Model) Violations(values []float64, tol float64) []Violation {
	if len(values) != m.problem.NumVariables() {
		return []Violation{{
			Invariant: "assignment",
			Detail:    fmt.Sprintf("%d values for %d variables", len(values), m.problem.NumVariables()),
		}}
	}
	var out []Violation
	add := func(inv string, c grid.Coord, format string, args ...any) {
		out = append(out, Violation{Invariant: inv, At: c, Detail: fmt.Sprintf(format, args...)})
	}

	binary := func(c grid.Coord, id milp.VarID) {
		if v := values[id]; math.Abs(v-math.Round(v)) > tol || v < -tol || v > 1+tol {
			add("integrality", c, "placement %s = %g", m.problem.Variable(id).Name, v)
		}
	}
	gated := func(c grid.Coord, flow, place milp.VarID, capacity float64) {
		f := values[flow]
		if f < -tol || f > capacity+tol {
			add("bounds", c, "flow %s = %g outside [0, %g]", m.problem.Variable(flow).Name, f, capacity)
		}
		if f > capacity*values[place]+tol {
			add("gating", c, "flow %s = %g without placement", m.problem.Variable(flow).Name, f)
		}
	}

	for _, mc := range m.machines {
		binary(mc.Anchor, mc.Place)
		for _, o := range mc.Outputs {
			gated(mc.Anchor, o.Flow, mc.Place, mc.Capacity)
		}
	}
	for _, b := range m.belts {
		binary(b.At, b.Place)
		gated(b.At, b.Flow, b.Place, m.params.MaxBeltOutput)
	}

	g := m.grid
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			c := grid.Coord{X: x, Y: y}
			var occupied, outflow, inflow float64
			for _, b := range m.BeltsAt(c) {
				occupied += values[b.Place]
				outflow += values[b.Flow]
			}
			for _, mc := range m.MachinesCovering(c) {
				occupied += values[mc.Place]
			}
			for _, f := range m.FeedsInto(c) {
				inflow += values[f]
			}
			if occupied > 1+tol {
				add("overlap", c, "occupancy %g", occupied)
			}
			if math.Abs(outflow-inflow) > tol*math.Max(1, inflow) {
				add("conservation", c, "outflow %g, inflow %g", outflow, inflow)
			}
		}
	}

	produced, exported := m.MachineOutput(values), m.Export(values)
	if math.Abs(produced-exported) > tol*math.Max(1, produced) {
		add("global_conservation", grid.Coord{}, "machine output %g, export %g", produced, exported)
	}
	return out
}

// Validate returns an error describing every violated invariant, or nil.
func (m *Model) Validate(sol *milp.Solution, tol float64) error {
	if sol == nil || sol.Values == nil {
		return errors.New(errors.ErrCodeInvalidInput, "solution has no values")
	}
	vs := m.Violations(sol.Values, tol)
	if len(vs) == 0 {
		return nil
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return errors.New(errors.ErrCodeInternal, "layout breaks %d invariant(s): %s", len(vs), strings.Join(parts, "; "))
}
