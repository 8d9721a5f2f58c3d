package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/pipeline"
	"github.com/matzehuels/oreflow/pkg/render"
)

// Viewer styles
var (
	viewMachineStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAmber)
	viewBeltStyle    = lipgloss.NewStyle().Foreground(colorCyan)
	viewExportStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	viewFloorStyle   = lipgloss.NewStyle().Foreground(colorDim)
	viewLabelStyle   = lipgloss.NewStyle().Foreground(colorGray).Width(10)
	viewPanelStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorDim).
				Padding(0, 1)
)

// viewCommand creates the view command, which solves a map and opens the
// interactive layout viewer.
func (c *CLI) viewCommand() *cobra.Command {
	var (
		mf modelFlags
		sf solverFlags
	)

	cmd := &cobra.Command{
		Use:   "view [map]",
		Short: "Solve a map and browse the layout interactively",
		Long: `Solve a map and browse the layout interactively.

Move the cursor with the arrow keys (or h/j/k/l) to inspect the machine or
belt under it. Tab jumps to the next machine, q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.baseOptions()
			if err != nil {
				return err
			}
			opts.MapPath = args[0]
			mf.apply(cmd, &opts)
			sf.apply(cmd, &opts)
			opts.Formats = []string{pipeline.FormatText}
			return c.runView(cmd.Context(), opts, sf.noCache)
		},
	}

	mf.register(cmd)
	sf.register(cmd)
	return cmd
}

func (c *CLI) runView(ctx context.Context, opts pipeline.Options, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache, "")
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, err := c.execute(ctx, runner, opts)
	if err != nil {
		return err
	}
	if !res.Solution.IsOptimal() {
		return reportNonOptimal(statusOut, res)
	}

	m := newLayoutView(res.Layout, res.Grid, opts.Glyphs, opts.MapPath)
	_, err = tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// =============================================================================
// layoutView - Interactive layout browser
// =============================================================================

// layoutView is the bubbletea model for browsing a solved layout.
type layoutView struct {
	layout *render.Layout
	grid   *grid.Grid
	glyphs render.Glyphs
	title  string

	cursor   grid.Coord
	machines map[grid.Coord]int // footprint cell -> index into layout.Machines
	belts    map[grid.Coord]int // belt cell -> index into layout.Belts
	next     int                // next machine for tab
}

func newLayoutView(l *render.Layout, g *grid.Grid, glyphs render.Glyphs, title string) layoutView {
	v := layoutView{
		layout:   l,
		grid:     g,
		glyphs:   glyphs,
		title:    title,
		machines: make(map[grid.Coord]int),
		belts:    make(map[grid.Coord]int, len(l.Belts)),
	}
	for i, m := range l.Machines {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				v.machines[m.Anchor.Add(dx, dy)] = i
			}
		}
	}
	for i, b := range l.Belts {
		v.belts[b.At] = i
	}
	return v
}

func (v layoutView) Init() tea.Cmd {
	return nil
}

func (v layoutView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return v, tea.Quit
	case "up", "k":
		v.move(0, -1)
	case "down", "j":
		v.move(0, 1)
	case "left", "h":
		v.move(-1, 0)
	case "right", "l":
		v.move(1, 0)
	case "tab":
		if len(v.layout.Machines) > 0 {
			v.cursor = v.layout.Machines[v.next%len(v.layout.Machines)].Anchor
			v.next++
		}
	}
	return v, nil
}

func (v *layoutView) move(dx, dy int) {
	c := v.cursor.Add(dx, dy)
	if c.X >= 0 && c.Y >= 0 && c.X < v.layout.Width && c.Y < v.layout.Height {
		v.cursor = c
	}
}

func (v layoutView) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(v.title))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("arrows: move  tab: next machine  q: quit"))
	b.WriteString("\n\n")

	var gridView strings.Builder
	for y, row := range v.layout.Rows {
		x := 0
		for _, r := range row {
			c := grid.Coord{X: x, Y: y}
			style := v.cellStyle(c, r)
			if c == v.cursor {
				style = style.Reverse(true)
			}
			gridView.WriteString(style.Render(string(r)))
			x++
		}
		if y < len(v.layout.Rows)-1 {
			gridView.WriteByte('\n')
		}
	}

	panel := viewPanelStyle.Render(v.describe(v.cursor))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, viewPanelStyle.Render(gridView.String()), " ", panel))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("  export %s · %d machines · %d belts",
		fmtRate(v.layout.Export), len(v.layout.Machines), len(v.layout.Belts))))
	b.WriteString("\n")
	return b.String()
}

func (v layoutView) cellStyle(c grid.Coord, r rune) lipgloss.Style {
	if i, ok := v.belts[c]; ok {
		if v.layout.Belts[i].Exports {
			return viewExportStyle
		}
		return viewBeltStyle
	}
	if r == v.glyphs.Machine {
		return viewMachineStyle
	}
	return viewFloorStyle
}

// describe returns the info panel text for cell c.
func (v layoutView) describe(c grid.Coord) string {
	lines := []string{
		viewLabelStyle.Render("cell") + c.String(),
	}
	if v.grid != nil {
		lines = append(lines, viewLabelStyle.Render("terrain")+v.grid.At(c.X, c.Y).String())
	}
	if i, ok := v.belts[c]; ok {
		belt := v.layout.Belts[i]
		lines = append(lines,
			"",
			viewBeltStyle.Render("belt"),
			viewLabelStyle.Render("direction")+belt.Dir.String(),
			viewLabelStyle.Render("flow")+fmtRate(belt.Flow),
		)
		if belt.Exports {
			lines = append(lines, viewExportStyle.Render("exports off the map"))
		}
	}
	if i, ok := v.machines[c]; ok {
		m := v.layout.Machines[i]
		lines = append(lines,
			"",
			viewMachineStyle.Render("machine"),
			viewLabelStyle.Render("anchor")+m.Anchor.String(),
			viewLabelStyle.Render("ore")+fmt.Sprint(m.Ore),
			viewLabelStyle.Render("output")+fmtRate(m.Output),
		)
	}
	return strings.Join(lines, "\n")
}
