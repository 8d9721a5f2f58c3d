// Package pipeline provides the core layout pipeline for oreflow.
//
// This package implements the complete load → build → solve → render
// pipeline used by the CLI and the HTTP server. By centralizing this logic,
// both entry points share caching, history and logging behaviour.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Load: Parse the map file (or inline map text) into a grid
//  2. Build: Construct the MILP model for the grid and parameters
//  3. Solve: Run branch and bound, then prune idle placements
//  4. Render: Draw the optimal layout in the requested formats
//
// Non-optimal outcomes (infeasible, timeout, node limit) are not errors:
// Execute returns a Result whose Solution carries the status and whose
// Layout is nil.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    MapPath: "maps/small.txt",
//	    Formats: []string{"text"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if result.Solution.IsOptimal() {
//	    fmt.Print(string(result.Artifacts["text"]))
//	}
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/oreflow/pkg/cache"
	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/milp"
	"github.com/matzehuels/oreflow/pkg/milp/branchbound"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/render"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultTimeout bounds a single solve.
	DefaultTimeout = 60 * time.Second

	// DefaultEngine names the built-in solver in cache keys and history.
	DefaultEngine = "branchbound"

	// validationTol is the tolerance used to re-check solutions.
	validationTol = 1e-6
)

// NoOptimalMessage is what every front end reports for a non-optimal solve.
const NoOptimalMessage = "No optimal assignment for this problem"

// Format constants for output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatText: true,
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the layout pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Load options. Exactly one of MapPath and Map must be set.
	MapPath string `json:"map_path,omitempty"`
	Map     string `json:"map,omitempty"` // inline map text

	// Model options
	MaxMachineOutput float64 `json:"max_machine_output,omitempty"`
	MaxBeltOutput    float64 `json:"max_belt_output,omitempty"`
	OreCounting      string  `json:"ore_counting,omitempty"`

	// Solve options
	Timeout   time.Duration `json:"-"`
	NodeLimit int           `json:"node_limit,omitempty"`
	KeepIdle  bool          `json:"keep_idle,omitempty"` // skip pruning of zero-flow placements
	Refresh   bool          `json:"refresh,omitempty"`   // ignore cached solutions

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Terrain  bool     `json:"terrain,omitempty"`
	Detailed bool     `json:"detailed,omitempty"` // flow labels in DOT and SVG

	// Runtime options (not serialized)
	Alphabet grid.Alphabet              `json:"-"`
	Glyphs   render.Glyphs              `json:"-"`
	Logger   *log.Logger                `json:"-"`
	Progress func(branchbound.Progress) `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies this run in logs and history.
	RunID string

	Grid *grid.Grid

	// MapHash is the content hash of the map, independent of its alphabet.
	MapHash string

	Model    *model.Model
	Solution *milp.Solution

	// Layout is set only when Solution is optimal.
	Layout *render.Layout

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Width       int
	Height      int
	Variables   int
	Constraints int
	Nodes       int
	LoadTime    time.Duration
	BuildTime   time.Duration
	SolveTime   time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	SolutionHit bool // Whether the solution came from cache
	RenderHit   bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: text, json, dot, svg)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForModel(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	if o.NodeLimit < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "node limit must not be negative")
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "timeout must not be negative")
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks the map source and alphabet.
func (o *Options) ValidateForLoad() error {
	if o.MapPath == "" && o.Map == "" {
		return errors.New(errors.ErrCodeInvalidInput, "map path or map text is required")
	}
	if o.MapPath != "" && o.Map != "" {
		return errors.New(errors.ErrCodeInvalidInput, "map path and map text are mutually exclusive")
	}
	if o.Alphabet == (grid.Alphabet{}) {
		o.Alphabet = grid.DefaultAlphabet()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return o.Alphabet.Validate()
}

// SetModelDefaults fills unset rates with the model defaults.
func (o *Options) SetModelDefaults() {
	if o.MaxMachineOutput == 0 {
		o.MaxMachineOutput = model.DefaultMaxMachineOutput
	}
	if o.MaxBeltOutput == 0 {
		o.MaxBeltOutput = model.DefaultMaxBeltOutput
	}
	if o.OreCounting == "" {
		o.OreCounting = string(model.OreFootprint)
	}
}

// ValidateForModel sets model defaults and validates the parameters.
func (o *Options) ValidateForModel() error {
	o.SetModelDefaults()
	return o.Params().Validate()
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatText}
	}
	if o.Glyphs == (render.Glyphs{}) {
		o.Glyphs = render.DefaultGlyphs()
	}
	if o.Alphabet == (grid.Alphabet{}) {
		o.Alphabet = grid.DefaultAlphabet()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	return o.Glyphs.Validate()
}

// Params returns the model parameters.
func (o *Options) Params() model.Params {
	return model.Params{
		MaxMachineOutput: o.MaxMachineOutput,
		MaxBeltOutput:    o.MaxBeltOutput,
		OreCounting:      model.OreCounting(o.OreCounting),
	}
}

// ShouldPrune returns whether idle placements are dropped after solving.
func (o *Options) ShouldPrune() bool {
	return !o.KeepIdle
}

// SolutionKeyOpts returns cache key options for a solve.
func (o *Options) SolutionKeyOpts(engine string) cache.SolutionKeyOpts {
	return cache.SolutionKeyOpts{
		MaxMachineOutput: o.MaxMachineOutput,
		MaxBeltOutput:    o.MaxBeltOutput,
		OreCounting:      o.OreCounting,
		Prune:            o.ShouldPrune(),
		Engine:           engine,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:  format,
		Terrain: o.Terrain,
		Glyphs: fmt.Sprintf("%c%c%c%c%c%c|%v", o.Glyphs.Empty, o.Glyphs.Machine,
			o.Glyphs.North, o.Glyphs.East, o.Glyphs.South, o.Glyphs.West, o.Detailed),
	}
}
