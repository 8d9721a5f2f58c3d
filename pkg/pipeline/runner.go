package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/oreflow/pkg/cache"
	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/history"
	"github.com/matzehuels/oreflow/pkg/milp"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/observability"
	"github.com/matzehuels/oreflow/pkg/render"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache, history and logger - it
// doesn't store pipeline results. Multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// History, if set, records every run.
	History *history.Store

	// Solver overrides the default engine. Engine names it in cache keys.
	Solver milp.Solver
	Engine string

	// SolutionTTL overrides cache.TTLSolution when positive.
	SolutionTTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Engine: DefaultEngine,
	}
}

// Execute runs the complete load → build → solve → render pipeline with
// caching. A non-optimal solve is not an error: the returned Result carries
// the status and has no layout or artifacts.
func (r *Runner) Execute(ctx context.Context, opts Options) (_ *Result, err error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Artifacts: make(map[string][]byte),
	}
	started := time.Now()
	defer func() { r.record(ctx, opts, result, started, err) }()

	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger.With("run", result.RunID[:8])

	// Stage 1: Load
	loadStart := time.Now()
	g, err := Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Grid = g
	result.MapHash = MapHash(g)
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Width, result.Stats.Height = g.Width(), g.Height()

	logger.Debug("loaded map",
		"width", g.Width(),
		"height", g.Height(),
		"duration", result.Stats.LoadTime)

	// Stage 2: Build
	buildStart := time.Now()
	m, err := Build(ctx, g, opts)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	result.Model = m
	result.Stats.BuildTime = time.Since(buildStart)
	result.Stats.Variables = m.Stats().Variables
	result.Stats.Constraints = m.Stats().Constraints

	logger.Info("built model",
		"variables", m.Stats().Variables,
		"constraints", m.Stats().Constraints,
		"duration", result.Stats.BuildTime)

	// Stage 3: Solve
	solveStart := time.Now()
	sol, solveHit, err := r.SolveWithCacheInfo(ctx, m, result.MapHash, opts)
	if err != nil {
		return nil, err
	}
	result.Solution = sol
	result.Stats.SolveTime = time.Since(solveStart)
	result.Stats.Nodes = sol.Stats.Nodes
	result.CacheInfo.SolutionHit = solveHit

	logger.Info("solved",
		"status", sol.Status,
		"objective", sol.Objective,
		"nodes", sol.Stats.Nodes,
		"cached", solveHit,
		"duration", result.Stats.SolveTime)

	if !sol.IsOptimal() {
		return result, nil
	}

	// Stage 4: Render
	renderStart := time.Now()
	l, err := Layout(m, sol, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Layout = l
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, l, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	logger.Debug("rendered outputs",
		"formats", opts.Formats,
		"machines", len(l.Machines),
		"belts", len(l.Belts),
		"duration", result.Stats.RenderTime)

	return result, nil
}

// SolveWithCacheInfo solves m with caching and returns cache hit info.
// Only optimal solutions are cached.
func (r *Runner) SolveWithCacheInfo(ctx context.Context, m *model.Model, mapHash string, opts Options) (*milp.Solution, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForModel(); err != nil {
		return nil, false, err
	}
	hooks := observability.Cache()

	cacheKey := r.Keyer.SolutionKey(mapHash, opts.SolutionKeyOpts(r.engine()))

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		data, hit, err := r.Cache.Get(ctx, cacheKey)
		if err != nil {
			opts.Logger.Debug("cache read failed", "key", cacheKey, "error", err)
		}
		if err == nil && hit {
			sol, err := decodeSolution(data, m)
			if err == nil {
				hooks.OnCacheHit(ctx, "solution")
				return sol, true, nil // Cache hit
			}
			opts.Logger.Debug("discarding cached solution", "key", cacheKey, "error", err)
		}
		hooks.OnCacheMiss(ctx, "solution")
	}

	sol, err := Solve(ctx, r.Solver, m, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache the result
	if sol.IsOptimal() {
		if data, err := encodeSolution(sol); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, data, r.solutionTTL()); err != nil {
				opts.Logger.Debug("cache write failed", "key", cacheKey, "error", err)
			} else {
				hooks.OnCacheSet(ctx, "solution", len(data))
			}
		}
	}

	return sol, false, nil // Cache miss
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, l *render.Layout, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	hooks := observability.Cache()

	// Compute cache key from layout data
	layoutData, err := render.RenderJSON(l)
	if err != nil {
		return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
	}
	layoutHash := cache.Hash(layoutData)

	// Try to get all formats from cache
	allCached := true
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
			break
		}
	}

	if allCached && len(artifacts) == len(opts.Formats) {
		hooks.OnCacheHit(ctx, "artifact")
		return artifacts, true, nil // All artifacts from cache
	}
	hooks.OnCacheMiss(ctx, "artifact")

	// Render all formats
	rendered, err := Render(ctx, l, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact); err != nil {
			opts.Logger.Debug("cache write failed", "key", cacheKey, "error", err)
			continue
		}
		hooks.OnCacheSet(ctx, "artifact", len(data))
	}

	return rendered, false, nil // Cache miss
}

// Close releases resources held by the runner (cache and history).
func (r *Runner) Close() error {
	var first error
	if r.Cache != nil {
		first = r.Cache.Close()
	}
	if r.History != nil {
		if err := r.History.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Runner) solutionTTL() time.Duration {
	if r.SolutionTTL > 0 {
		return r.SolutionTTL
	}
	return cache.TTLSolution
}

func (r *Runner) engine() string {
	if r.Engine == "" {
		return DefaultEngine
	}
	return r.Engine
}

// record writes the run to history. Failures are logged, never returned.
func (r *Runner) record(ctx context.Context, opts Options, res *Result, started time.Time, runErr error) {
	if r.History == nil || res == nil {
		return
	}
	run := history.Run{
		ID:          res.RunID,
		StartedAt:   started,
		MapPath:     opts.MapPath,
		MapHash:     res.MapHash,
		Width:       res.Stats.Width,
		Height:      res.Stats.Height,
		MachineRate: opts.MaxMachineOutput,
		BeltRate:    opts.MaxBeltOutput,
		OreCounting: opts.OreCounting,
		Status:      "error",
		Nodes:       res.Stats.Nodes,
		Duration:    time.Since(started),
		CacheHit:    res.CacheInfo.SolutionHit,
	}
	if run.MapPath == "" {
		run.MapPath = "<inline>"
	}
	if opts.MaxMachineOutput == 0 || opts.MaxBeltOutput == 0 {
		opts.SetModelDefaults()
		run.MachineRate, run.BeltRate, run.OreCounting = opts.MaxMachineOutput, opts.MaxBeltOutput, opts.OreCounting
	}
	if res.Solution != nil {
		run.Status = res.Solution.Status.String()
		run.Objective = res.Solution.Objective
	}
	if res.Layout != nil {
		run.Machines = len(res.Layout.Machines)
		run.Belts = len(res.Layout.Belts)
	}
	if runErr != nil {
		run.Status = "error"
		run.Error = errors.UserMessage(runErr)
	}
	if err := r.History.Record(context.WithoutCancel(ctx), run); err != nil && r.Logger != nil {
		r.Logger.Debug("history write failed", "run", run.ID, "error", err)
	}
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
