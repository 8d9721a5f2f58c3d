package model

import (
	"fmt"
	"math"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/milp"
)

// Default rates.
const (
	DefaultMaxMachineOutput = 5.0
	DefaultMaxBeltOutput    = 5.0
)

// Params are the model's numeric inputs.
type Params struct {
	// MaxMachineOutput is the output rate per unit of ore in a footprint.
	MaxMachineOutput float64 `json:"max_machine_output"`
	// MaxBeltOutput is the throughput of one belt.
	MaxBeltOutput float64 `json:"max_belt_output"`
	// OreCounting selects footprint or anchor ore counting. Empty means
	// OreFootprint.
	OreCounting OreCounting `json:"ore_counting"`
}

// DefaultParams returns the standard rates with footprint ore counting.
func DefaultParams() Params {
	return Params{
		MaxMachineOutput: DefaultMaxMachineOutput,
		MaxBeltOutput:    DefaultMaxBeltOutput,
		OreCounting:      OreFootprint,
	}
}

// Validate checks that both rates are positive and finite and that the ore
// counting mode is known.
func (p Params) Validate() error {
	if err := errors.ValidateRate("max machine output", p.MaxMachineOutput); err != nil {
		return err
	}
	if err := errors.ValidateRate("max belt output", p.MaxBeltOutput); err != nil {
		return err
	}
	return p.OreCounting.Validate()
}

func (p Params) counting() OreCounting {
	if p.OreCounting == "" {
		return OreFootprint
	}
	return p.OreCounting
}

// MachineOutput is one gated output of a machine.
type MachineOutput struct {
	Target grid.Coord
	Flow   milp.VarID
}

// Machine is a candidate machine position and its variables.
type Machine struct {
	Anchor   grid.Coord
	Ore      int
	Capacity float64 // upper bound of every output flow
	Place    milp.VarID
	Outputs  []MachineOutput
}

// Footprint returns the four cells the machine occupies.
func (m *Machine) Footprint() [4]grid.Coord {
	return footprint(m.Anchor.X, m.Anchor.Y)
}

// Belt is a candidate belt (cell, direction) and its variables.
type Belt struct {
	At    grid.Coord
	Dir   Direction
	Place milp.VarID
	Flow  milp.VarID
}

type beltKey struct {
	c grid.Coord
	d Direction
}

// Stats counts what a model contains.
type Stats struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	Machines     int `json:"machines"`
	MachineFlows int `json:"machine_flows"`
	Belts        int `json:"belts"`
	BeltFlows    int `json:"belt_flows"`
	Variables    int `json:"variables"`

	Overlap      int `json:"overlap_constraints"`
	Conservation int `json:"conservation_constraints"`
	Gating       int `json:"gating_constraints"`
	Global       int `json:"global_constraints"`
	Constraints  int `json:"constraints"`

	Exports int `json:"boundary_exports"`
}

// Model is a built layout program together with its variable index.
// A Model is owned by one invocation and is read-only after Build.
type Model struct {
	grid    *grid.Grid
	params  Params
	problem *milp.Problem

	machines  []*Machine
	machineAt map[grid.Coord]*Machine
	belts     []*Belt
	beltAt    map[beltKey]*Belt
	fed       map[grid.Coord][]milp.VarID // machine output flows by target cell
	exports   []milp.VarID

	stats Stats
}

// Build creates every variable and constraint for g under params.
func Build(g *grid.Grid, params Params) (*Model, error) {
	if g == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nil grid")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.OreCounting = params.counting()

	m := &Model{
		grid:      g,
		params:    params,
		problem:   milp.NewProblem(fmt.Sprintf("layout %dx%d", g.Width(), g.Height())),
		machineAt: make(map[grid.Coord]*Machine),
		beltAt:    make(map[beltKey]*Belt),
		fed:       make(map[grid.Coord][]milp.VarID),
	}
	m.stats.Width, m.stats.Height = g.Width(), g.Height()

	m.addMachines()
	m.addBelts()
	m.addOverlap()
	m.addConservation()
	m.addGlobal()
	m.problem.Maximize(m.objective())

	m.stats.Variables = m.problem.NumVariables()
	m.stats.Constraints = m.problem.NumConstraints()
	m.stats.Exports = len(m.exports)
	return m, nil
}

// machineTieBreak scales the per-machine objective penalty relative to the
// smaller rate. It must stay above the solver's gap tolerance at default
// rates and well below any difference between distinct export totals.
const machineTieBreak = 1e-4

// objective is total export minus a small penalty per placed machine, so
// among layouts with equal export the one with fewest machines wins.
func (m *Model) objective() milp.Expr {
	e := milp.Sum(m.exports...)
	w := machineTieBreak * min(m.params.MaxMachineOutput, m.params.MaxBeltOutput)
	for _, mc := range m.machines {
		e = e.Add(mc.Place, -w)
	}
	return e
}

func (m *Model) addMachines() {
	g, p := m.grid, m.problem
	for y := 0; y < g.Height()-1; y++ {
		for x := 0; x < g.Width()-1; x++ {
			if !MachineFits(g, x, y) {
				continue
			}
			ore := OreInFootprint(g, x, y, m.params.OreCounting)
			mc := &Machine{
				Anchor:   grid.Coord{X: x, Y: y},
				Ore:      ore,
				Capacity: float64(ore) * m.params.MaxMachineOutput,
				Place:    p.AddBinary(fmt.Sprintf("machine[%d,%d]", x, y)),
			}
			for _, t := range MachineAdjacentCells(g, x, y) {
				f := p.AddContinuous(fmt.Sprintf("machine_out[%d,%d->%d,%d]", x, y, t.X, t.Y), 0, mc.Capacity)
				p.AddConstraint(fmt.Sprintf("gate_machine[%d,%d->%d,%d]", x, y, t.X, t.Y),
					milp.Expr{}.Add(f, 1).Add(mc.Place, -mc.Capacity), milp.LessEqual, 0)
				mc.Outputs = append(mc.Outputs, MachineOutput{Target: t, Flow: f})
				m.fed[t] = append(m.fed[t], f)
				m.stats.MachineFlows++
				m.stats.Gating++
			}
			m.machines = append(m.machines, mc)
			m.machineAt[mc.Anchor] = mc
			m.stats.Machines++
		}
	}
}

func (m *Model) addBelts() {
	g, p := m.grid, m.problem
	beltCap := m.params.MaxBeltOutput
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			if !g.Accessible(x, y) {
				continue
			}
			c := grid.Coord{X: x, Y: y}
			for _, d := range Directions {
				b := &Belt{
					At:    c,
					Dir:   d,
					Place: p.AddBinary(fmt.Sprintf("belt[%d,%d,%s]", x, y, d)),
					Flow:  p.AddContinuous(fmt.Sprintf("belt_out[%d,%d,%s]", x, y, d), 0, beltCap),
				}
				p.AddConstraint(fmt.Sprintf("gate_belt[%d,%d,%s]", x, y, d),
					milp.Expr{}.Add(b.Flow, 1).Add(b.Place, -beltCap), milp.LessEqual, 0)
				m.belts = append(m.belts, b)
				m.beltAt[beltKey{c, d}] = b
				if ExportsAcrossBoundary(g, c, d) {
					m.exports = append(m.exports, b.Flow)
				}
				m.stats.Belts++
				m.stats.BeltFlows++
				m.stats.Gating++
			}
		}
	}
}

func (m *Model) addOverlap() {
	g := m.grid
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			c := grid.Coord{X: x, Y: y}
			var e milp.Expr
			for _, b := range m.BeltsAt(c) {
				e = e.Add(b.Place, 1)
			}
			for _, mc := range m.MachinesCovering(c) {
				e = e.Add(mc.Place, 1)
			}
			if len(e) == 0 {
				continue
			}
			m.problem.AddConstraint(fmt.Sprintf("overlap[%d,%d]", x, y), e, milp.LessEqual, 1)
			m.stats.Overlap++
		}
	}
}

func (m *Model) addConservation() {
	g := m.grid
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			c := grid.Coord{X: x, Y: y}
			var out milp.Expr
			for _, b := range m.BeltsAt(c) {
				out = out.Add(b.Flow, 1)
			}
			in := m.FeedsInto(c)
			if len(out) == 0 && len(in) == 0 {
				continue
			}
			e := out
			for _, f := range in {
				e = e.Add(f, -1)
			}
			m.problem.AddConstraint(fmt.Sprintf("conserve[%d,%d]", x, y), e, milp.Equal, 0)
			m.stats.Conservation++
		}
	}
}

func (m *Model) addGlobal() {
	var e milp.Expr
	for _, mc := range m.machines {
		for _, o := range mc.Outputs {
			e = e.Add(o.Flow, 1)
		}
	}
	for _, f := range m.exports {
		e = e.Add(f, -1)
	}
	m.problem.AddConstraint("global_conservation", e, milp.Equal, 0)
	m.stats.Global++
}

// Grid returns the map the model was built from.
func (m *Model) Grid() *grid.Grid { return m.grid }

// Params returns the effective parameters.
func (m *Model) Params() Params { return m.params }

// Problem returns the program to hand to a solver.
func (m *Model) Problem() *milp.Problem { return m.problem }

// Stats returns variable and constraint counts.
func (m *Model) Stats() Stats { return m.stats }

// Machines returns every candidate machine in row-major anchor order.
func (m *Model) Machines() []*Machine { return m.machines }

// Belts returns every candidate belt in row-major cell order, directions in
// canonical order within a cell.
func (m *Model) Belts() []*Belt { return m.belts }

// HasMachine reports whether a machine variable exists for anchor c.
func (m *Model) HasMachine(c grid.Coord) bool {
	_, ok := m.machineAt[c]
	return ok
}

// Machine returns the machine anchored at c, or nil.
func (m *Model) Machine(c grid.Coord) *Machine { return m.machineAt[c] }

// HasBelt reports whether a belt variable exists for (c, d).
func (m *Model) HasBelt(c grid.Coord, d Direction) bool {
	_, ok := m.beltAt[beltKey{c, d}]
	return ok
}

// Belt returns the belt at c facing d, or nil.
func (m *Model) Belt(c grid.Coord, d Direction) *Belt { return m.beltAt[beltKey{c, d}] }

// BeltsAt returns the belts that may occupy c, in direction order.
func (m *Model) BeltsAt(c grid.Coord) []*Belt {
	var out []*Belt
	for _, d := range Directions {
		if b := m.Belt(c, d); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// MachinesCovering returns the machines whose footprint includes c.
func (m *Model) MachinesCovering(c grid.Coord) []*Machine {
	var out []*Machine
	for _, a := range [4]grid.Coord{c, c.Add(-1, 0), c.Add(0, -1), c.Add(-1, -1)} {
		if mc := m.Machine(a); mc != nil {
			out = append(out, mc)
		}
	}
	return out
}

// FeedsInto returns every flow variable that deposits ore into c: the
// belts of the four neighbours facing c, then each machine output targeting c.
func (m *Model) FeedsInto(c grid.Coord) []milp.VarID {
	var in []milp.VarID
	for _, d := range [4]Direction{East, West, South, North} {
		// A neighbour facing d sits on the opposite side of c.
		dx, dy := d.Opposite().Delta()
		if b := m.Belt(c.Add(dx, dy), d); b != nil {
			in = append(in, b.Flow)
		}
	}
	return append(in, m.fed[c]...)
}

// BoundaryExports returns the belt flows that leave the map: west belts in
// the first column, east belts in the last, north belts in the first row and
// south belts in the last.
func (m *Model) BoundaryExports() []milp.VarID { return m.exports }

// Export evaluates total boundary export under values.
func (m *Model) Export(values []float64) float64 {
	return milp.Sum(m.exports...).Eval(values)
}

// Normalize returns a copy of sol whose Objective is the boundary export of
// its values, without the machine tie-break. Solutions without values are
// returned unchanged.
func (m *Model) Normalize(sol *milp.Solution) *milp.Solution {
	if sol == nil || sol.Values == nil {
		return sol
	}
	out := *sol
	out.Objective = m.Export(sol.Values)
	return &out
}

// MachineOutput evaluates total machine output under values.
func (m *Model) MachineOutput(values []float64) float64 {
	var s float64
	for _, mc := range m.machines {
		for _, o := range mc.Outputs {
			s += values[o.Flow]
		}
	}
	return s
}

// Active reports whether a binary placement is on. Values above one half
// count as on, absorbing solver tolerance.
func Active(values []float64, id milp.VarID) bool {
	return int(id) < len(values) && values[id] > 0.5
}

// ActiveMachines returns the machines placed in values.
func (m *Model) ActiveMachines(values []float64) []*Machine {
	var out []*Machine
	for _, mc := range m.machines {
		if Active(values, mc.Place) {
			out = append(out, mc)
		}
	}
	return out
}

// ActiveBelts returns the belts placed in values.
func (m *Model) ActiveBelts(values []float64) []*Belt {
	var out []*Belt
	for _, b := range m.belts {
		if Active(values, b.Place) {
			out = append(out, b)
		}
	}
	return out
}

// UpperBound is a cheap bound on the objective: every exporting belt at
// full throughput, limited by what machines can produce.
func (m *Model) UpperBound() float64 {
	beltSide := float64(len(m.exports)) * m.params.MaxBeltOutput
	var machineSide float64
	for _, mc := range m.machines {
		machineSide += float64(len(mc.Outputs)) * mc.Capacity
	}
	return math.Min(beltSide, machineSide)
}
