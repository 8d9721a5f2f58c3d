package render

import (
	"encoding/json"
	"strings"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/milp"
	"github.com/matzehuels/oreflow/pkg/model"
)

// Glyphs are the characters a layout is drawn with.
type Glyphs struct {
	Empty   rune `json:"empty"`
	Machine rune `json:"machine"`
	North   rune `json:"north"`
	East    rune `json:"east"`
	South   rune `json:"south"`
	West    rune `json:"west"`
}

// DefaultGlyphs returns '.', 'M' and the arrows ^ > v <.
func DefaultGlyphs() Glyphs {
	return Glyphs{Empty: '.', Machine: 'M', North: '^', East: '>', South: 'v', West: '<'}
}

// Belt returns the glyph for a belt facing d.
func (g Glyphs) Belt(d model.Direction) rune {
	switch d {
	case model.North:
		return g.North
	case model.East:
		return g.East
	case model.South:
		return g.South
	default:
		return g.West
	}
}

// Validate checks that every glyph is a single printable character and that
// no two glyphs coincide.
func (g Glyphs) Validate() error {
	syms := map[string]string{
		"empty":   string(g.Empty),
		"machine": string(g.Machine),
		"north":   string(g.North),
		"east":    string(g.East),
		"south":   string(g.South),
		"west":    string(g.West),
	}
	for name, s := range syms {
		if err := errors.ValidateSymbol("glyph "+name, s); err != nil {
			return err
		}
	}
	return errors.ValidateDistinct("glyph", syms)
}

// Options configure Render.
type Options struct {
	// Glyphs default to DefaultGlyphs when zero.
	Glyphs Glyphs

	// Terrain draws unused cells with their map symbols instead of the
	// empty glyph.
	Terrain bool

	// Alphabet supplies the map symbols for Terrain. Defaults to
	// grid.DefaultAlphabet.
	Alphabet grid.Alphabet
}

// PlacedMachine is a machine in a rendered layout.
type PlacedMachine struct {
	Anchor grid.Coord `json:"anchor"`
	Ore    int        `json:"ore"`
	Output float64    `json:"output"`
}

// PlacedBelt is a belt in a rendered layout.
type PlacedBelt struct {
	At      grid.Coord      `json:"at"`
	Dir     model.Direction `json:"direction"`
	Flow    float64         `json:"flow"`
	Exports bool            `json:"exports"`
}

// Layout is a rendered solution.
type Layout struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Rows   []string `json:"rows"`

	Machines []PlacedMachine `json:"machines"`
	Belts    []PlacedBelt    `json:"belts"`

	// Export is the total flow leaving the map.
	Export float64 `json:"export"`

	// Overlaps counts cells where a belt was drawn over a machine.
	Overlaps int `json:"overlaps,omitempty"`

	Params model.Params `json:"params"`
	Stats  model.Stats  `json:"stats"`
}

// Render draws sol on m's map. sol must be optimal.
func Render(m *model.Model, sol *milp.Solution, opts Options) (*Layout, error) {
	if !sol.IsOptimal() {
		status := "missing"
		if sol != nil {
			status = sol.Status.String()
		}
		return nil, errors.New(errors.ErrCodeNotOptimal, "no optimal assignment to render (status %s)", status)
	}
	if opts.Glyphs == (Glyphs{}) {
		opts.Glyphs = DefaultGlyphs()
	}
	if opts.Alphabet == (grid.Alphabet{}) {
		opts.Alphabet = grid.DefaultAlphabet()
	}
	if err := opts.Glyphs.Validate(); err != nil {
		return nil, err
	}

	g := m.Grid()
	cells := make([][]rune, g.Height())
	for y := range cells {
		cells[y] = make([]rune, g.Width())
		for x := range cells[y] {
			if opts.Terrain {
				cells[y][x] = opts.Alphabet.Symbol(g.At(x, y))
			} else {
				cells[y][x] = opts.Glyphs.Empty
			}
		}
	}

	values := sol.Values
	l := &Layout{
		Width:  g.Width(),
		Height: g.Height(),
		Export: m.Export(values),
		Params: m.Params(),
		Stats:  m.Stats(),
	}

	covered := make(map[grid.Coord]bool)
	for _, mc := range m.ActiveMachines(values) {
		pm := PlacedMachine{Anchor: mc.Anchor, Ore: mc.Ore}
		for _, o := range mc.Outputs {
			pm.Output += values[o.Flow]
		}
		l.Machines = append(l.Machines, pm)
		for _, c := range mc.Footprint() {
			cells[c.Y][c.X] = opts.Glyphs.Machine
			covered[c] = true
		}
	}

	// Belts are drawn after machines and win on shared cells.
	for _, b := range m.ActiveBelts(values) {
		l.Belts = append(l.Belts, PlacedBelt{
			At:      b.At,
			Dir:     b.Dir,
			Flow:    values[b.Flow],
			Exports: model.ExportsAcrossBoundary(g, b.At, b.Dir),
		})
		if covered[b.At] {
			l.Overlaps++
		}
		cells[b.At.Y][b.At.X] = opts.Glyphs.Belt(b.Dir)
	}

	l.Rows = make([]string, len(cells))
	for y, row := range cells {
		l.Rows[y] = string(row)
	}
	return l, nil
}

// String returns the glyph grid, one line per row.
func (l *Layout) String() string {
	var b strings.Builder
	for _, row := range l.Rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderJSON encodes a layout as indented JSON.
func RenderJSON(l *Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}
