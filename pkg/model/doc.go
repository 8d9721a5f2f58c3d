// Package model turns an ore map into a mixed-integer linear program whose
// optimum is the best placement of mining machines and conveyor belts.
//
// # Overview
//
// A machine occupies a 2×2 footprint and pushes ore into the up to eight
// cells bordering that footprint. A belt occupies one cell, faces one of
// four directions and forwards everything it receives to the neighbour it
// faces. Flow that a belt pushes across the map edge is exported; the model
// maximizes total export. A small penalty per placed machine breaks ties
// toward layouts with fewer machines; [Model.Normalize] strips it from a
// solver's objective.
//
// [Build] creates, for every geometrically valid position:
//
//   - a binary placement and one output flow per adjacent cell for each
//     machine anchor whose footprint avoids inaccessible cells
//   - a binary placement and an output flow per direction for each
//     accessible cell
//
// and links them with four constraint families:
//
//   - overlap: belts in a cell plus machines covering it ≤ 1
//   - conservation: a cell's belt output equals what flows into it
//   - global conservation: total machine output equals total export
//   - gating: flow ≤ capacity × placement
//
// Positions that would touch an inaccessible cell get no variables at all.
// Per-cell constraints with no terms are not emitted; the global
// constraint always is.
//
// # Ore Counting
//
// A machine's per-output capacity is its ore count times the machine rate.
// By default the ore count covers all four footprint cells
// ([OreFootprint]). [OreAnchor] counts only the anchor cell (the top-left
// footprint cell), which reproduces the layouts of earlier tooling built on
// the narrower reading. The choice changes optimal objectives, so it is part
// of every cache key and run record.
//
// # Reading Solutions
//
// The [Model] keeps a coordinate index of every variable it created. Use
// [Model.Machines], [Model.Belts], [Model.FeedsInto] and
// [Model.BoundaryExports] to interpret a solver assignment, [Model.Validate]
// to check the physical invariants against it and [Model.Prune] to drop
// placements that carry no useful flow.
package model
