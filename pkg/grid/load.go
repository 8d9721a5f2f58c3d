package grid

import (
	"bufio"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/matzehuels/oreflow/pkg/errors"
)

// Alphabet maps the three cell kinds to the characters used in map files.
type Alphabet struct {
	Inaccessible rune
	Empty        rune
	Ore          rune
}

// DefaultAlphabet returns the standard mapping: x, '.', o.
func DefaultAlphabet() Alphabet {
	return Alphabet{Inaccessible: 'x', Empty: '.', Ore: 'o'}
}

// Kind decodes one map character.
func (a Alphabet) Kind(r rune) (CellKind, bool) {
	switch r {
	case a.Inaccessible:
		return Inaccessible, true
	case a.Empty:
		return Empty, true
	case a.Ore:
		return Ore, true
	}
	return 0, false
}

// Symbol encodes one cell kind.
func (a Alphabet) Symbol(k CellKind) rune {
	switch k {
	case Inaccessible:
		return a.Inaccessible
	case Ore:
		return a.Ore
	default:
		return a.Empty
	}
}

// Validate checks that the three symbols are set and distinct.
func (a Alphabet) Validate() error {
	syms := map[string]string{
		"inaccessible": string(a.Inaccessible),
		"empty":        string(a.Empty),
		"ore":          string(a.Ore),
	}
	for name, s := range syms {
		if err := errors.ValidateSymbol("map symbol "+name, s); err != nil {
			return err
		}
	}
	return errors.ValidateDistinct("map", syms)
}

// Parse reads a map: one line per row, one character per cell.
//
// Surrounding whitespace (including a trailing '\r') is trimmed from every
// line and trailing blank lines are ignored. A blank line between rows is an
// empty row and therefore fails the rectangularity check.
func Parse(r io.Reader, a Alphabet) (*Grid, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidMap, err, "read map")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyMap, "map has no rows")
	}

	width := utf8.RuneCountInString(lines[0])
	rows := make([][]CellKind, len(lines))
	for y, line := range lines {
		if n := utf8.RuneCountInString(line); n != width {
			return nil, errors.New(errors.ErrCodeNonRectangular,
				"row %d has %d cells, row 1 has %d", y+1, n, width)
		}
		row := make([]CellKind, 0, width)
		col := 0
		for _, ch := range line {
			col++
			k, ok := a.Kind(ch)
			if !ok {
				return nil, errors.Wrap(errors.ErrCodeUnknownSymbol,
					&errors.PositionError{Row: y + 1, Column: col, Symbol: ch}, "unrecognized map symbol")
			}
			row = append(row, k)
		}
		rows[y] = row
	}
	return New(rows)
}

// ParseString parses a map held in memory.
func ParseString(s string, a Alphabet) (*Grid, error) {
	return Parse(strings.NewReader(s), a)
}

// MustParse parses s with the default alphabet and panics on error.
// Intended for tests and fixtures.
func MustParse(s string) *Grid {
	g, err := ParseString(s, DefaultAlphabet())
	if err != nil {
		panic(err)
	}
	return g
}

// Load reads and parses the map file at path.
func Load(path string, a Alphabet) (*Grid, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "map file %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidMap, err, "open map %s", path)
	}
	defer f.Close()
	return Parse(f, a)
}
