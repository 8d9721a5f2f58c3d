package model

import (
	"fmt"
	"strings"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
)

// Direction is the way a belt faces.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists every direction in canonical order.
var Directions = [4]Direction{North, East, South, West}

var directionNames = [4]string{"north", "east", "south", "west"}

// String returns the lowercase direction name.
func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Delta returns the offset of the neighbour d points at. North is -y.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	default:
		return -1, 0
	}
}

// Opposite returns the direction facing back.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// ParseDirection accepts a direction name or its first letter.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n":
		return North, nil
	case "east", "e":
		return East, nil
	case "south", "s":
		return South, nil
	case "west", "w":
		return West, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown direction %q", s)
}

// MarshalText encodes the direction name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// OreCounting selects how much ore a machine footprint holds.
type OreCounting string

const (
	// OreFootprint counts ore over all four footprint cells.
	OreFootprint OreCounting = "footprint"
	// OreAnchor counts only the anchor cell.
	OreAnchor OreCounting = "anchor"
)

// Validate reports whether c is a known mode. The empty string is accepted
// and means OreFootprint.
func (c OreCounting) Validate() error {
	switch c {
	case "", OreFootprint, OreAnchor:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidConfig,
		"ore counting must be %q or %q, got %q", OreFootprint, OreAnchor, string(c))
}

// footprint returns the four cells of a machine anchored at (x,y).
func footprint(x, y int) [4]grid.Coord {
	return [4]grid.Coord{{X: x, Y: y}, {X: x + 1, Y: y}, {X: x, Y: y + 1}, {X: x + 1, Y: y + 1}}
}

// MachineFits reports whether a machine can be anchored at (x,y): the whole
// footprint is on the map and none of it is inaccessible.
func MachineFits(g *grid.Grid, x, y int) bool {
	for _, c := range footprint(x, y) {
		if !g.Accessible(c.X, c.Y) {
			return false
		}
	}
	return true
}

// Covers reports whether a machine anchored at anchor occupies c.
func Covers(anchor, c grid.Coord) bool {
	return c.X >= anchor.X && c.X <= anchor.X+1 && c.Y >= anchor.Y && c.Y <= anchor.Y+1
}

// MachineAdjacentCells returns the cells a machine anchored at (x,y) can
// push ore into: the two cells above the footprint, the two below, the two
// to its left and the two to its right, in that order, clipped to the map.
func MachineAdjacentCells(g *grid.Grid, x, y int) []grid.Coord {
	cands := [8]grid.Coord{
		{X: x, Y: y - 1}, {X: x + 1, Y: y - 1},
		{X: x, Y: y + 2}, {X: x + 1, Y: y + 2},
		{X: x - 1, Y: y}, {X: x - 1, Y: y + 1},
		{X: x + 2, Y: y}, {X: x + 2, Y: y + 1},
	}
	out := make([]grid.Coord, 0, len(cands))
	for _, c := range cands {
		if g.InBounds(c.X, c.Y) {
			out = append(out, c)
		}
	}
	return out
}

// OreInFootprint returns the ore count available to a machine at (x,y).
//
// With OreFootprint every footprint cell is counted. With OreAnchor only
// (x,y) itself is, which bounds each output by one cell's worth of ore even
// when the rest of the footprint sits on ore too.
func OreInFootprint(g *grid.Grid, x, y int, counting OreCounting) int {
	if counting == OreAnchor {
		if g.IsOre(x, y) {
			return 1
		}
		return 0
	}
	n := 0
	for _, c := range footprint(x, y) {
		if g.IsOre(c.X, c.Y) {
			n++
		}
	}
	return n
}

// ExportsAcrossBoundary reports whether a belt at c facing d pushes its
// output off the map.
func ExportsAcrossBoundary(g *grid.Grid, c grid.Coord, d Direction) bool {
	dx, dy := d.Delta()
	n := c.Add(dx, dy)
	return !g.InBounds(n.X, n.Y)
}
