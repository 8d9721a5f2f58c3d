package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/milp"
	"github.com/matzehuels/oreflow/pkg/milp/branchbound"
)

const tol = 1e-6

func build(t *testing.T, m string, p Params) *Model {
	t.Helper()
	md, err := Build(grid.MustParse(m), p)
	require.NoError(t, err)
	return md
}

func solve(t *testing.T, md *Model) *milp.Solution {
	t.Helper()
	sol, err := branchbound.New(branchbound.Options{}).Solve(context.Background(), md.Problem())
	require.NoError(t, err)
	require.Equal(t, milp.StatusOptimal, sol.Status)
	require.NoError(t, md.Validate(sol, tol))
	return md.Normalize(sol)
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	tests := []Params{
		{MaxMachineOutput: 0, MaxBeltOutput: 5},
		{MaxMachineOutput: 5, MaxBeltOutput: -1},
		{MaxMachineOutput: 5, MaxBeltOutput: 5, OreCounting: "all"},
	}
	for _, p := range tests {
		err := p.Validate()
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig), "%+v: got %v", p, err)

		_, err = Build(grid.MustParse("oo\noo"), p)
		assert.Error(t, err)
	}
}

func TestBuildNilGrid(t *testing.T) {
	_, err := Build(nil, DefaultParams())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestBuildStats(t *testing.T) {
	md := build(t, "...\n...\n...", DefaultParams())
	s := md.Stats()

	assert.Equal(t, 4, s.Machines)
	assert.Equal(t, 4*4, s.MachineFlows) // each corner machine reaches 4 cells in a 3x3 map
	assert.Equal(t, 9*4, s.Belts)
	assert.Equal(t, 9*4, s.BeltFlows)
	assert.Equal(t, s.Machines+s.MachineFlows+s.Belts+s.BeltFlows, s.Variables)
	assert.Equal(t, md.Problem().NumVariables(), s.Variables)

	assert.Equal(t, 9, s.Overlap)
	assert.Equal(t, 9, s.Conservation)
	assert.Equal(t, s.MachineFlows+s.BeltFlows, s.Gating)
	assert.Equal(t, 1, s.Global)
	assert.Equal(t, s.Overlap+s.Conservation+s.Gating+s.Global, s.Constraints)
	assert.Equal(t, md.Problem().NumConstraints(), s.Constraints)

	assert.Equal(t, 2*3+2*3, s.Exports)
	assert.Len(t, md.BoundaryExports(), s.Exports)
}

func TestBuildSkipsInaccessible(t *testing.T) {
	md := build(t, "xo.\noo.\n...", DefaultParams())

	assert.False(t, md.HasMachine(grid.Coord{X: 0, Y: 0}))
	assert.True(t, md.HasMachine(grid.Coord{X: 1, Y: 0}))
	assert.False(t, md.HasBelt(grid.Coord{X: 0, Y: 0}, North))
	assert.True(t, md.HasBelt(grid.Coord{X: 1, Y: 0}, North))
	assert.Nil(t, md.Machine(grid.Coord{X: 0, Y: 0}))
	assert.Len(t, md.BeltsAt(grid.Coord{X: 0, Y: 0}), 0)
	assert.Len(t, md.BeltsAt(grid.Coord{X: 2, Y: 2}), 4)
}

func TestFeedsInto(t *testing.T) {
	md := build(t, "....\n....\n....\n....", DefaultParams())

	// (0,1) sits left of machines anchored at (1,0) and (1,1) and above the
	// machine anchored at (0,2).
	c := grid.Coord{X: 0, Y: 1}
	in := md.FeedsInto(c)

	want := []milp.VarID{
		md.Belt(grid.Coord{X: 1, Y: 1}, West).Flow,
		md.Belt(grid.Coord{X: 0, Y: 0}, South).Flow,
		md.Belt(grid.Coord{X: 0, Y: 2}, North).Flow,
	}
	for _, id := range want {
		assert.Contains(t, in, id)
	}
	var machines int
	for _, mc := range md.Machines() {
		for _, o := range mc.Outputs {
			if o.Target == c {
				machines++
				assert.Contains(t, in, o.Flow)
			}
		}
	}
	assert.Equal(t, 3, machines)
	assert.Len(t, in, len(want)+machines)
}

func TestMachinesCovering(t *testing.T) {
	md := build(t, "...\n...\n...", DefaultParams())
	assert.Len(t, md.MachinesCovering(grid.Coord{X: 1, Y: 1}), 4)
	assert.Len(t, md.MachinesCovering(grid.Coord{X: 0, Y: 0}), 1)
	assert.Len(t, md.MachinesCovering(grid.Coord{X: 2, Y: 1}), 2)
}

// A 2x2 ore map fits a machine, but nothing remains to carry its ore away.
func TestScenarioFullyCovered(t *testing.T) {
	md := build(t, "oo\noo", DefaultParams())
	assert.Equal(t, 1, md.Stats().Machines)
	assert.Equal(t, 0, md.Stats().MachineFlows)

	sol := solve(t, md)
	assert.InDelta(t, 0, sol.Objective, tol)

	pruned := md.Prune(sol)
	require.NoError(t, md.Validate(pruned, tol))
	assert.Empty(t, md.ActiveBelts(pruned.Values))
	assert.Empty(t, md.ActiveMachines(pruned.Values))
}

// An all-inaccessible map yields no variables and only the global constraint.
func TestScenarioAllInaccessible(t *testing.T) {
	md := build(t, "xxx\nxxx", DefaultParams())
	s := md.Stats()
	assert.Equal(t, 0, s.Variables)
	assert.Equal(t, 1, s.Constraints)
	assert.Equal(t, 1, s.Global)

	sol := solve(t, md)
	assert.Equal(t, 0.0, sol.Objective)
}

// A one-cell corridor cannot host a 2x2 footprint, so nothing produces ore.
func TestScenarioNarrowCorridor(t *testing.T) {
	md := build(t, ".\no\no\no\n.", DefaultParams())
	assert.Equal(t, 0, md.Stats().Machines)
	assert.Greater(t, md.Stats().Belts, 0)

	sol := solve(t, md)
	assert.InDelta(t, 0, sol.Objective, tol)
}

// An ore block ringed by empty cells: one central machine feeds all eight
// border cells, each exporting at belt capacity.
func TestScenarioRingedOreBlock(t *testing.T) {
	if testing.Short() {
		t.Skip("branch and bound on a 4x4 map")
	}
	for _, counting := range []OreCounting{OreFootprint, OreAnchor} {
		t.Run(string(counting), func(t *testing.T) {
			p := DefaultParams()
			p.OreCounting = counting
			md := build(t, "....\n.oo.\n.oo.\n....", p)

			sol := solve(t, md)
			assert.InDelta(t, 40, sol.Objective, 1e-5)

			pruned := md.Prune(sol)
			require.NoError(t, md.Validate(pruned, tol))
			machines := md.ActiveMachines(pruned.Values)
			require.Len(t, machines, 1)
			assert.Equal(t, grid.Coord{X: 1, Y: 1}, machines[0].Anchor)
			assert.NotEmpty(t, md.ActiveBelts(pruned.Values))
			assert.InDelta(t, sol.Objective, pruned.Objective, 1e-5)
		})
	}
}

// Two side-by-side machines reach the same export as one central machine
// here; the tie-break must pick the single machine every time.
func TestFewestMachinesWinTies(t *testing.T) {
	if testing.Short() {
		t.Skip("branch and bound on a 4x4 map")
	}
	md := build(t, "....\n.oo.\n.oo.\n....", DefaultParams())
	for range 3 {
		raw, err := branchbound.New(branchbound.Options{}).Solve(context.Background(), md.Problem())
		require.NoError(t, err)
		require.Equal(t, milp.StatusOptimal, raw.Status)

		sol := md.Normalize(raw)
		assert.InDelta(t, 40, sol.Objective, 1e-5)
		assert.Less(t, raw.Objective, sol.Objective, "machine penalty is part of the program objective")
		assert.Len(t, md.ActiveMachines(sol.Values), 1)
	}
}

func TestNormalize(t *testing.T) {
	md := build(t, "o..\n...", DefaultParams())
	assert.Nil(t, md.Normalize(nil))

	timedOut := &milp.Solution{Status: milp.StatusTimeout}
	assert.Same(t, timedOut, md.Normalize(timedOut))

	sol := solve(t, md)
	assert.InDelta(t, 10, sol.Objective, 1e-6)
	assert.Equal(t, md.Export(sol.Values), sol.Objective)
}

// Ore only in the last column can never be an anchor, so anchor counting
// sees no ore while footprint counting does.
func TestOreCountingChangesOptimum(t *testing.T) {
	m := "...o\n....\n...."

	foot := DefaultParams()
	sol := solve(t, build(t, m, foot))
	assert.InDelta(t, 20, sol.Objective, 1e-5)

	anchor := DefaultParams()
	anchor.OreCounting = OreAnchor
	sol = solve(t, build(t, m, anchor))
	assert.InDelta(t, 0, sol.Objective, 1e-5)
}

func TestMonotoneInRates(t *testing.T) {
	// One machine at (0,0) feeds (2,0) and (2,1), both on the east edge.
	m := "o..\n..."
	rates := []float64{1, 2, 4}

	objective := func(machine, belt float64) float64 {
		md := build(t, m, Params{MaxMachineOutput: machine, MaxBeltOutput: belt})
		return solve(t, md).Objective
	}

	for _, belt := range []float64{1, 3} {
		prev := -1.0
		for _, machine := range rates {
			got := objective(machine, belt)
			assert.GreaterOrEqual(t, got, prev-tol, "machine rate %g, belt rate %g", machine, belt)
			assert.InDelta(t, 2*min(machine, belt), got, 1e-5)
			prev = got
		}
	}
	for _, machine := range []float64{1, 3} {
		prev := -1.0
		for _, belt := range rates {
			got := objective(machine, belt)
			assert.GreaterOrEqual(t, got, prev-tol, "machine rate %g, belt rate %g", machine, belt)
			prev = got
		}
	}
}

func TestViolations(t *testing.T) {
	md := build(t, "oo\noo", DefaultParams())
	values := make([]float64, md.Problem().NumVariables())
	assert.Empty(t, md.Violations(values, tol))

	// A machine and a belt on the same cell.
	values[md.Machine(grid.Coord{}).Place] = 1
	values[md.Belt(grid.Coord{X: 1, Y: 1}, North).Place] = 1

	var kinds []string
	for _, v := range md.Violations(values, tol) {
		kinds = append(kinds, v.Invariant)
	}
	assert.Contains(t, kinds, "overlap")

	err := md.Validate(&milp.Solution{Status: milp.StatusOptimal, Values: values}, tol)
	assert.True(t, errors.Is(err, errors.ErrCodeInternal))

	assert.Len(t, md.Violations(values[:1], tol), 1)
}

func TestViolationsConservation(t *testing.T) {
	md := build(t, "...\n...", DefaultParams())
	values := make([]float64, md.Problem().NumVariables())

	// An exporting belt with no source.
	b := md.Belt(grid.Coord{X: 0, Y: 0}, West)
	values[b.Place] = 1
	values[b.Flow] = 3

	var kinds []string
	for _, v := range md.Violations(values, tol) {
		kinds = append(kinds, v.Invariant)
	}
	assert.Contains(t, kinds, "conservation")
	assert.Contains(t, kinds, "global_conservation")
}

func TestPruneRemovesClosedLoops(t *testing.T) {
	md := build(t, "oo\noo", DefaultParams())
	values := make([]float64, md.Problem().NumVariables())

	loop := []struct {
		c grid.Coord
		d Direction
	}{
		{grid.Coord{X: 0, Y: 0}, East},
		{grid.Coord{X: 1, Y: 0}, South},
		{grid.Coord{X: 1, Y: 1}, West},
		{grid.Coord{X: 0, Y: 1}, North},
	}
	for _, l := range loop {
		b := md.Belt(l.c, l.d)
		values[b.Place] = 1
		values[b.Flow] = 5
	}
	sol := &milp.Solution{Status: milp.StatusOptimal, Values: values}
	require.Empty(t, md.Violations(values, tol), "a closed loop is feasible")

	pruned := md.Prune(sol)
	assert.Empty(t, md.ActiveBelts(pruned.Values))
	assert.Empty(t, md.Violations(pruned.Values, tol))
	assert.Len(t, md.ActiveBelts(sol.Values), 4, "input must not be modified")
}

func TestPruneLeavesNonOptimalAlone(t *testing.T) {
	md := build(t, "oo\noo", DefaultParams())
	sol := &milp.Solution{Status: milp.StatusTimeout}
	assert.Same(t, sol, md.Prune(sol))
}

func TestUpperBound(t *testing.T) {
	md := build(t, "o..\n...", Params{MaxMachineOutput: 1, MaxBeltOutput: 3})
	sol := solve(t, md)
	assert.LessOrEqual(t, sol.Objective, md.UpperBound()+tol)
}
