package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/oreflow/pkg/cache"
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/observability"
)

// Load reads the map named by opts.
func Load(ctx context.Context, opts Options) (*grid.Grid, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, err
	}

	source := opts.MapPath
	if source == "" {
		source = "<inline>"
	}
	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, source)
	start := time.Now()

	var (
		g   *grid.Grid
		err error
	)
	if opts.Map != "" {
		g, err = grid.ParseString(opts.Map, opts.Alphabet)
	} else {
		g, err = grid.Load(opts.MapPath, opts.Alphabet)
	}

	w, h := 0, 0
	if g != nil {
		w, h = g.Width(), g.Height()
	}
	hooks.OnLoadComplete(ctx, source, w, h, time.Since(start), err)
	return g, err
}

// MapHash hashes the map content in the default alphabet, so the same
// terrain hashes the same whatever symbols its file used.
func MapHash(g *grid.Grid) string {
	return cache.Hash([]byte(g.Format(grid.DefaultAlphabet())))
}

// Build constructs the model for g.
func Build(ctx context.Context, g *grid.Grid, opts Options) (*model.Model, error) {
	if err := opts.ValidateForModel(); err != nil {
		return nil, err
	}
	start := time.Now()
	m, err := model.Build(g, opts.Params())
	vars, cons := 0, 0
	if m != nil {
		vars, cons = m.Stats().Variables, m.Stats().Constraints
	}
	observability.Pipeline().OnBuildComplete(ctx, vars, cons, time.Since(start), err)
	return m, err
}
