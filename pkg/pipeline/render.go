package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/milp"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/observability"
	"github.com/matzehuels/oreflow/pkg/render"
	"github.com/matzehuels/oreflow/pkg/render/nodelink"
)

// Layout draws an optimal solution. It fails with NOT_OPTIMAL otherwise.
func Layout(m *model.Model, sol *milp.Solution, opts Options) (*render.Layout, error) {
	opts.SetRenderDefaults()
	return render.Render(m, sol, render.Options{
		Glyphs:   opts.Glyphs,
		Terrain:  opts.Terrain,
		Alphabet: opts.Alphabet,
	})
}

// Render generates output artifacts in the requested formats.
func Render(ctx context.Context, l *render.Layout, opts Options) (map[string][]byte, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	artifacts, err := renderFormats(ctx, l, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	return artifacts, err
}

func renderFormats(ctx context.Context, l *render.Layout, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))
	var dot string
	toDOT := func() string {
		if dot == "" {
			dot = nodelink.ToDOT(l, nodelink.Options{Detailed: opts.Detailed})
		}
		return dot
	}

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatText:
			data = []byte(l.String())
		case FormatJSON:
			data, err = render.RenderJSON(l)
		case FormatDOT:
			data = []byte(toDOT())
		case FormatSVG:
			data, err = nodelink.RenderSVG(ctx, toDOT())
		default:
			return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	return artifacts, nil
}
