package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/render"
)

func testView(t *testing.T) layoutView {
	t.Helper()
	g, err := grid.ParseString("o..\n...", grid.DefaultAlphabet())
	if err != nil {
		t.Fatal(err)
	}
	l := &render.Layout{
		Width:  3,
		Height: 2,
		Rows:   []string{"MM>", "MM>"},
		Machines: []render.PlacedMachine{
			{Anchor: grid.Coord{X: 0, Y: 0}, Ore: 1, Output: 10},
		},
		Belts: []render.PlacedBelt{
			{At: grid.Coord{X: 2, Y: 0}, Dir: model.East, Flow: 5, Exports: true},
			{At: grid.Coord{X: 2, Y: 1}, Dir: model.East, Flow: 5, Exports: true},
		},
		Export: 10,
	}
	return newLayoutView(l, g, render.DefaultGlyphs(), "small.txt")
}

func press(v layoutView, key tea.KeyMsg) layoutView {
	m, _ := v.Update(key)
	return m.(layoutView)
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestLayoutViewMove(t *testing.T) {
	v := testView(t)

	v = press(v, tea.KeyMsg{Type: tea.KeyLeft})
	v = press(v, runeKey('k'))
	if v.cursor != (grid.Coord{}) {
		t.Errorf("cursor left the grid: %v", v.cursor)
	}

	for i := 0; i < 5; i++ {
		v = press(v, runeKey('l'))
	}
	v = press(v, tea.KeyMsg{Type: tea.KeyDown})
	v = press(v, runeKey('j'))
	if want := (grid.Coord{X: 2, Y: 1}); v.cursor != want {
		t.Errorf("cursor = %v, want clamped to %v", v.cursor, want)
	}

	v = press(v, tea.KeyMsg{Type: tea.KeyTab})
	if v.cursor != (grid.Coord{}) {
		t.Errorf("tab should jump to the machine anchor, got %v", v.cursor)
	}
}

func TestLayoutViewQuit(t *testing.T) {
	v := testView(t)
	for _, key := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := v.Update(key)
		if cmd == nil {
			t.Errorf("%s should quit", key)
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s returned a non-quit command", key)
		}
	}
}

func TestLayoutViewDescribe(t *testing.T) {
	v := testView(t)

	machine := v.describe(grid.Coord{X: 1, Y: 1})
	for _, want := range []string{"1,1", "empty", "machine", "0,0", "10"} {
		if !strings.Contains(machine, want) {
			t.Errorf("machine cell description missing %q:\n%s", want, machine)
		}
	}
	if strings.Contains(machine, "belt") {
		t.Errorf("machine cell described as a belt:\n%s", machine)
	}

	belt := v.describe(grid.Coord{X: 2, Y: 0})
	for _, want := range []string{"belt", "east", "5", "exports off the map"} {
		if !strings.Contains(belt, want) {
			t.Errorf("belt cell description missing %q:\n%s", want, belt)
		}
	}

	if ore := v.describe(grid.Coord{}); !strings.Contains(ore, "ore") {
		t.Errorf("anchor cell terrain missing:\n%s", ore)
	}
}

func TestLayoutViewRender(t *testing.T) {
	out := testView(t).View()
	for _, want := range []string{"small.txt", "export 10", "1 machines", "2 belts"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
