package model

import (
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/milp"
)

// flowEps is the smallest flow treated as real.
const flowEps = 1e-7

// Prune returns a copy of sol without idle placements.
//
// A solver is free to place machines that produce nothing and belts that
// carry nothing, or belts circulating ore in a closed loop, since none of
// them change the objective. Prune keeps a machine only if it outputs ore
// and a belt only if ore reaches it from a machine along belts with flow.
// Everything else is switched off together with its flow.
//
// Ore in a closed loop cannot reach the boundary, and no ore enters such a
// loop from outside it (otherwise it would be reachable), so removing those
// belts keeps every constraint satisfied and leaves the objective unchanged.
// Non-optimal solutions are returned unchanged.
func (m *Model) Prune(sol *milp.Solution) *milp.Solution {
	if !sol.IsOptimal() || sol.Values == nil {
		return sol
	}
	values := make([]float64, len(sol.Values))
	copy(values, sol.Values)

	// Cells receiving machine output seed the search.
	var queue []grid.Coord
	seen := make(map[grid.Coord]bool)
	for _, mc := range m.machines {
		var out float64
		for _, o := range mc.Outputs {
			if values[o.Flow] > flowEps {
				out += values[o.Flow]
				if !seen[o.Target] {
					seen[o.Target] = true
					queue = append(queue, o.Target)
				}
			} else {
				values[o.Flow] = 0
			}
		}
		if out <= flowEps {
			values[mc.Place] = 0
		}
	}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, b := range m.BeltsAt(c) {
			if values[b.Flow] <= flowEps {
				continue
			}
			dx, dy := b.Dir.Delta()
			n := c.Add(dx, dy)
			if m.grid.InBounds(n.X, n.Y) && !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}

	for _, b := range m.belts {
		if !seen[b.At] || values[b.Flow] <= flowEps {
			values[b.Place] = 0
			values[b.Flow] = 0
		}
	}

	out := *sol
	out.Values = values
	out.Objective = m.Export(values)
	return &out
}
