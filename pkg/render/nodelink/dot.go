package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/render"
)

// Options configures flow graph rendering.
type Options struct {
	// Detailed adds ore counts and flow rates to labels and edges.
	// When false, only positions and directions are shown.
	Detailed bool
}

const boundaryID = "boundary"

// ToDOT converts a rendered layout to a Graphviz DOT flow graph.
// The resulting DOT string can be rendered with [RenderSVG].
//
// Machines are boxes, belts are ellipses and every export ends in a single
// "boundary" sink. Edges follow the ore: machine to the belt cells it feeds,
// belt to the belt it faces.
func ToDOT(l *render.Layout, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=ellipse, style=\"filled\", fillcolor=white, fontsize=14];\n")
	buf.WriteString("\n")

	belts := make(map[grid.Coord]render.PlacedBelt, len(l.Belts))
	for _, b := range l.Belts {
		belts[b.At] = b
	}

	for _, m := range l.Machines {
		fmt.Fprintf(&buf, "  %q [%s];\n", machineID(m.Anchor), strings.Join(machineAttrs(m, opts.Detailed), ", "))
	}
	for _, b := range l.Belts {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", beltID(b.At), fmtBeltLabel(b, opts.Detailed))
	}
	if hasExport(l) {
		fmt.Fprintf(&buf, "  %q [shape=doublecircle, fillcolor=lightgrey];\n", boundaryID)
	}

	buf.WriteString("\n")
	for _, m := range l.Machines {
		for _, c := range adjacentBelts(m.Anchor, belts) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", machineID(m.Anchor), beltID(c))
		}
	}
	for _, b := range l.Belts {
		to := boundaryID
		if !b.Exports {
			dx, dy := b.Dir.Delta()
			next := b.At.Add(dx, dy)
			if _, ok := belts[next]; !ok {
				continue
			}
			to = beltID(next)
		}
		if opts.Detailed {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", beltID(b.At), to, fmtFlow(b.Flow))
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", beltID(b.At), to)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func machineID(c grid.Coord) string { return "machine " + c.String() }

func beltID(c grid.Coord) string { return "belt " + c.String() }

func machineAttrs(m render.PlacedMachine, detailed bool) []string {
	label := "M " + m.Anchor.String()
	if detailed {
		label += fmt.Sprintf("\nore: %d\noutput: %s", m.Ore, fmtFlow(m.Output))
	}
	return []string{
		fmt.Sprintf("label=%q", label),
		"shape=box",
		"style=\"rounded,filled\"",
		"fillcolor=\"#f5c26b\"",
	}
}

func fmtBeltLabel(b render.PlacedBelt, detailed bool) string {
	label := b.At.String() + " " + b.Dir.String()
	if detailed {
		label += "\n" + fmtFlow(b.Flow)
	}
	return label
}

func fmtFlow(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func hasExport(l *render.Layout) bool {
	for _, b := range l.Belts {
		if b.Exports {
			return true
		}
	}
	return false
}

// adjacentBelts returns the belt cells bordering the footprint at anchor,
// in the same order machines list their outputs.
func adjacentBelts(a grid.Coord, belts map[grid.Coord]render.PlacedBelt) []grid.Coord {
	cands := []grid.Coord{
		a.Add(0, -1), a.Add(1, -1),
		a.Add(0, 2), a.Add(1, 2),
		a.Add(-1, 0), a.Add(-1, 1),
		a.Add(2, 0), a.Add(2, 1),
	}
	var out []grid.Coord
	for _, c := range cands {
		if _, ok := belts[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
