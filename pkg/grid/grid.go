// Package grid holds the immutable, rectangular ore map that every layout is
// computed on.
//
// A Grid stores one [CellKind] per cell in row-major order. Coordinates are
// (x, y) with x the column (0 at the west edge) and y the row (0 at the north
// edge). Grids are built once by [New] or the loaders in this package and
// never mutated afterwards; accessors return copies where a caller could
// otherwise alias internal state.
package grid

import (
	"fmt"
	"strings"

	"github.com/matzehuels/oreflow/pkg/errors"
)

// CellKind classifies a single map cell.
type CellKind int8

const (
	// Inaccessible cells host nothing and break any footprint touching them.
	Inaccessible CellKind = iota - 1
	// Empty cells can host belts and machine footprints but carry no ore.
	Empty
	// Ore cells carry extractable resource.
	Ore
)

// String returns the lowercase kind name.
func (k CellKind) String() string {
	switch k {
	case Inaccessible:
		return "inaccessible"
	case Empty:
		return "empty"
	case Ore:
		return "ore"
	default:
		return fmt.Sprintf("CellKind(%d)", int8(k))
	}
}

// Valid reports whether k is one of the three known kinds.
func (k CellKind) Valid() bool {
	return k == Inaccessible || k == Empty || k == Ore
}

// Coord addresses a cell.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the coordinate as "x,y".
func (c Coord) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// Add returns c shifted by (dx, dy).
func (c Coord) Add(dx, dy int) Coord {
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Grid is an immutable W×H map of cell kinds.
type Grid struct {
	width, height int
	cells         []CellKind
}

// New validates rows and returns a grid holding a private copy of them.
// Every row must have the same, non-zero length.
func New(rows [][]CellKind) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyMap, "map has no cells")
	}
	w, h := len(rows[0]), len(rows)
	cells := make([]CellKind, 0, w*h)
	for y, row := range rows {
		if len(row) != w {
			return nil, errors.New(errors.ErrCodeNonRectangular,
				"row %d has %d cells, row 1 has %d", y+1, len(row), w)
		}
		for x, k := range row {
			if !k.Valid() {
				return nil, errors.New(errors.ErrCodeInvalidMap, "cell %d,%d has invalid kind %d", x, y, int8(k))
			}
		}
		cells = append(cells, row...)
	}
	return &Grid{width: w, height: h, cells: cells}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(rows [][]CellKind) *Grid {
	g, err := New(rows)
	if err != nil {
		panic(err)
	}
	return g
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x,y) lies within the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// At returns the kind of cell (x,y). Out-of-bounds cells read as Inaccessible.
func (g *Grid) At(x, y int) CellKind {
	if !g.InBounds(x, y) {
		return Inaccessible
	}
	return g.cells[y*g.width+x]
}

// Accessible reports whether (x,y) is inside the grid and not Inaccessible.
func (g *Grid) Accessible(x, y int) bool {
	return g.At(x, y) != Inaccessible
}

// IsOre reports whether (x,y) is an ore cell.
func (g *Grid) IsOre(x, y int) bool {
	return g.At(x, y) == Ore
}

// Count returns how many cells have kind k.
func (g *Grid) Count(k CellKind) int {
	n := 0
	for _, c := range g.cells {
		if c == k {
			n++
		}
	}
	return n
}

// Rows returns a copy of the cells, one slice per row.
func (g *Grid) Rows() [][]CellKind {
	rows := make([][]CellKind, g.height)
	for y := range rows {
		rows[y] = make([]CellKind, g.width)
		copy(rows[y], g.cells[y*g.width:(y+1)*g.width])
	}
	return rows
}

// Format renders the grid with the given alphabet, one line per row.
func (g *Grid) Format(a Alphabet) string {
	var b strings.Builder
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			b.WriteRune(a.Symbol(g.At(x, y)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// String renders the grid with the default alphabet.
func (g *Grid) String() string {
	return g.Format(DefaultAlphabet())
}
