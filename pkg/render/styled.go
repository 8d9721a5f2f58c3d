package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleMachine = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	styleBelt    = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	styleExport  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35"))
	styleFloor   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Styled returns the glyph grid coloured for a terminal: machines in amber,
// belts in teal, exporting belts in bold green and everything else dimmed.
// Colours are dropped automatically when the output is not a terminal.
func Styled(l *Layout, glyphs Glyphs) string {
	if glyphs == (Glyphs{}) {
		glyphs = DefaultGlyphs()
	}
	exporting := make(map[[2]int]bool, len(l.Belts))
	for _, b := range l.Belts {
		if b.Exports {
			exporting[[2]int{b.At.X, b.At.Y}] = true
		}
	}
	arrows := map[rune]bool{glyphs.North: true, glyphs.East: true, glyphs.South: true, glyphs.West: true}

	var b strings.Builder
	for y, row := range l.Rows {
		x := 0
		for _, r := range row {
			s := string(r)
			switch {
			case exporting[[2]int{x, y}]:
				b.WriteString(styleExport.Render(s))
			case arrows[r]:
				b.WriteString(styleBelt.Render(s))
			case r == glyphs.Machine:
				b.WriteString(styleMachine.Render(s))
			default:
				b.WriteString(styleFloor.Render(s))
			}
			x++
		}
		b.WriteByte('\n')
	}
	return b.String()
}
