// Package nodelink renders a layout as a node-link flow graph.
//
// # Overview
//
// Where the glyph grid shows where things stand, the flow graph shows where
// ore goes: machines feed belts, belts feed belts, and exporting belts feed
// the map boundary. Graphviz lays the graph out.
//
// # Usage
//
//	dot := nodelink.ToDOT(layout, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// With Detailed set, machine labels carry their ore count and output and
// belt edges carry their flow rate.
//
// The DOT text is also useful on its own, for example piped into
// `dot -Tpng` or pasted into an online viewer.
package nodelink
