package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
)

func TestDirection(t *testing.T) {
	tests := []struct {
		d      Direction
		name   string
		dx, dy int
		back   Direction
	}{
		{North, "north", 0, -1, South},
		{East, "east", 1, 0, West},
		{South, "south", 0, 1, North},
		{West, "west", -1, 0, East},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.d.String())
			dx, dy := tt.d.Delta()
			assert.Equal(t, tt.dx, dx)
			assert.Equal(t, tt.dy, dy)
			assert.Equal(t, tt.back, tt.d.Opposite())

			parsed, err := ParseDirection(tt.name[:1])
			require.NoError(t, err)
			assert.Equal(t, tt.d, parsed)
		})
	}

	_, err := ParseDirection("up")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestMachineAdjacentCells(t *testing.T) {
	g := grid.MustParse("....\n....\n....\n....")

	got := MachineAdjacentCells(g, 1, 1)
	assert.Equal(t, []grid.Coord{
		{X: 1, Y: 0}, {X: 2, Y: 0}, // above
		{X: 1, Y: 3}, {X: 2, Y: 3}, // below
		{X: 0, Y: 1}, {X: 0, Y: 2}, // left
		{X: 3, Y: 1}, {X: 3, Y: 2}, // right
	}, got)

	corner := MachineAdjacentCells(g, 0, 0)
	assert.Equal(t, []grid.Coord{{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 0}, {X: 2, Y: 1}}, corner)

	assert.Empty(t, MachineAdjacentCells(grid.MustParse("oo\noo"), 0, 0))
}

func TestMachineAdjacentCellsKeepsInaccessible(t *testing.T) {
	g := grid.MustParse("xxxx\n.oo.\n.oo.\n....")
	got := MachineAdjacentCells(g, 1, 1)
	assert.Contains(t, got, grid.Coord{X: 1, Y: 0})
	assert.Len(t, got, 8)
}

func TestMachineFits(t *testing.T) {
	g := grid.MustParse("oox\noo.\n...")
	assert.True(t, MachineFits(g, 0, 0))
	assert.False(t, MachineFits(g, 1, 0), "footprint touches x")
	assert.True(t, MachineFits(g, 1, 1))
	assert.False(t, MachineFits(g, 2, 2), "footprint leaves the map")
}

func TestOreInFootprint(t *testing.T) {
	g := grid.MustParse(".o\noo")
	assert.Equal(t, 3, OreInFootprint(g, 0, 0, OreFootprint))
	assert.Equal(t, 0, OreInFootprint(g, 0, 0, OreAnchor), "anchor is empty")

	g = grid.MustParse("o.\n..")
	assert.Equal(t, 1, OreInFootprint(g, 0, 0, OreFootprint))
	assert.Equal(t, 1, OreInFootprint(g, 0, 0, OreAnchor))

	g = grid.MustParse("oo\noo")
	assert.Equal(t, 4, OreInFootprint(g, 0, 0, OreFootprint))
	assert.Equal(t, 1, OreInFootprint(g, 0, 0, OreAnchor))
}

func TestOreCountingValidate(t *testing.T) {
	assert.NoError(t, OreCounting("").Validate())
	assert.NoError(t, OreFootprint.Validate())
	assert.NoError(t, OreAnchor.Validate())
	assert.True(t, errors.Is(OreCounting("cells").Validate(), errors.ErrCodeInvalidConfig))
}

func TestExportsAcrossBoundary(t *testing.T) {
	g := grid.MustParse("...\n...")
	assert.True(t, ExportsAcrossBoundary(g, grid.Coord{X: 0, Y: 0}, West))
	assert.True(t, ExportsAcrossBoundary(g, grid.Coord{X: 0, Y: 0}, North))
	assert.False(t, ExportsAcrossBoundary(g, grid.Coord{X: 0, Y: 0}, East))
	assert.True(t, ExportsAcrossBoundary(g, grid.Coord{X: 2, Y: 1}, East))
	assert.True(t, ExportsAcrossBoundary(g, grid.Coord{X: 1, Y: 1}, South))
	assert.False(t, ExportsAcrossBoundary(g, grid.Coord{X: 1, Y: 1}, North))
}

func TestCovers(t *testing.T) {
	a := grid.Coord{X: 1, Y: 1}
	assert.True(t, Covers(a, grid.Coord{X: 2, Y: 2}))
	assert.False(t, Covers(a, grid.Coord{X: 0, Y: 1}))
	assert.False(t, Covers(a, grid.Coord{X: 1, Y: 3}))
}
