// Package pkg provides the core libraries for oreflow mining layout
// optimization.
//
// # Overview
//
// oreflow reads a character map of inaccessible, empty and ore cells and
// places 2x2 mining machines and directional conveyor belts so that as much
// ore as possible flows off the map edge. The placement is a mixed-integer
// linear program: machines and belts are binary decisions, flows are
// continuous, and the objective is the total exported flow.
//
// # Architecture
//
// The data flow through oreflow:
//
//	Map file
//	   ↓
//	[grid] package (parse and validate the map)
//	   ↓
//	[model] package (build the MILP over machines, belts and flows)
//	   ↓
//	[milp/branchbound] package (solve it)
//	   ↓
//	[render] package (draw the layout)
//	   ↓
//	Text/JSON/DOT/SVG output
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/oreflow/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(context.Background(), pipeline.Options{
//	    MapPath: "maps/small.txt",
//	    Formats: []string{pipeline.FormatText},
//	})
//	if err != nil {
//	    return err
//	}
//	if res.Layout == nil {
//	    fmt.Println(pipeline.NoOptimalMessage)
//	}
//
// # Main Packages
//
// ## Domain Logic
//
// [grid] - The map: cell kinds, coordinates and the loader that turns a
// configurable three-symbol alphabet into a rectangular grid.
//
// [model] - The layout MILP. Candidate machines, belts and their flow
// variables, plus the overlap, gating, conservation and global
// constraints that tie them together.
//
// [milp] - A small solver-neutral problem representation and the
// [milp/branchbound] engine, which solves LP relaxations with gonum's
// simplex and branches depth first on fractional binaries.
//
// [render] - Text, JSON and terminal renderings of a solved layout, and
// [render/nodelink] for Graphviz DOT and SVG flow graphs.
//
// ## Infrastructure
//
// [pipeline] - The load → build → solve → render pipeline shared by the
// CLI and the HTTP server, with content-addressed caching of solutions
// and artifacts.
//
// [cache] - Cache backends: compressed files for the CLI, Redis and
// MongoDB for shared deployments, and a no-op cache.
//
// [config] - TOML or YAML configuration for rates, symbols, solver limits
// and backends.
//
// [history] - A SQLite log of past runs.
//
// [observability] - Hooks for tracing and metrics around pipeline stages.
//
// [errors] - Coded errors shared across packages.
//
// [grid]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/grid
// [model]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/model
// [milp]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/milp
// [milp/branchbound]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/milp/branchbound
// [render]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/render
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/render/nodelink
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/config
// [history]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/history
// [observability]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/oreflow/pkg/errors
package pkg
