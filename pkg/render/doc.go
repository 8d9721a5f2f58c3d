// Package render turns an optimal layout assignment into something people
// can read.
//
// # Overview
//
// [Render] maps a solver assignment back onto the map as a [Layout]: one
// glyph per cell plus the list of placed machines and belts with their
// flows. A Layout prints as a character grid ([Layout.String]), encodes as
// JSON ([RenderJSON]) and can be coloured for terminals ([Styled]).
//
// The [nodelink] subpackage draws the same layout as a flow graph in
// Graphviz DOT or SVG.
//
// # Glyph Precedence
//
// Every cell starts as the empty glyph (or its map symbol with
// [Options.Terrain]). Active machines then mark their four footprint cells,
// and active belts are drawn last. If an assignment ever carries both a
// machine and a belt on one cell, the belt glyph is what appears and the
// clash is counted in [Layout.Overlaps]. Valid optimal layouts never
// contain such clashes.
//
// Only [milp.StatusOptimal] solutions can be rendered; anything else fails
// with a NOT_OPTIMAL error.
package render
