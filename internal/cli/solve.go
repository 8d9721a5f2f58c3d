package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/pipeline"
)

// modelFlags are the flags that change the program a map produces.
type modelFlags struct {
	machineRate float64
	beltRate    float64
	oreCounting string
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.machineRate, "max-machine-output", model.DefaultMaxMachineOutput, "output limit of one machine")
	cmd.Flags().Float64Var(&f.beltRate, "max-belt-output", model.DefaultMaxBeltOutput, "flow limit of one belt")
	cmd.Flags().StringVar(&f.oreCounting, "ore-counting", string(model.OreFootprint), "machine capacity from ore under the 2x2 footprint or the anchor cell only: footprint, anchor")
}

// apply copies explicitly set flags over the configured options.
func (f *modelFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	if cmd.Flags().Changed("max-machine-output") {
		opts.MaxMachineOutput = f.machineRate
	}
	if cmd.Flags().Changed("max-belt-output") {
		opts.MaxBeltOutput = f.beltRate
	}
	if cmd.Flags().Changed("ore-counting") {
		opts.OreCounting = f.oreCounting
	}
}

// solverFlags are the flags shared by commands that run the solver.
type solverFlags struct {
	timeout   time.Duration
	nodeLimit int
	prune     bool
	noCache   bool
}

func (f *solverFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", pipeline.DefaultTimeout, "stop the search after this long (0 disables)")
	cmd.Flags().IntVar(&f.nodeLimit, "node-limit", 0, "stop the search after this many branch-and-bound nodes (0 disables)")
	cmd.Flags().BoolVar(&f.prune, "prune", true, "drop machines and belts that carry no flow")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
}

func (f *solverFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = f.timeout
	}
	if cmd.Flags().Changed("node-limit") {
		opts.NodeLimit = f.nodeLimit
	}
	if cmd.Flags().Changed("prune") {
		opts.KeepIdle = !f.prune
	}
}

// solveFlags holds the command-line flags for the solve command.
type solveFlags struct {
	modelFlags
	solverFlags

	formats  string
	output   string
	terrain  bool
	detailed bool
	stats    bool
}

// solveCommand creates the solve command.
func (c *CLI) solveCommand() *cobra.Command {
	var f solveFlags

	cmd := &cobra.Command{
		Use:   "solve [map]",
		Short: "Solve a map and print the layout",
		Long: `Solve a map and print the layout.

The map is a text file with one character per cell: 'o' for ore, '.' for
empty ground and 'x' for inaccessible cells (the symbols are configurable).
The layout is printed with 'M' for machine cells and ^ > v < for belts.

When no optimal layout is proven (infeasible, timeout or node limit) the
command says so and exits 0.

Results are cached locally for faster subsequent runs.`,
		Example: `  oreflow solve maps/small.txt
  oreflow solve maps/small.txt --max-belt-output 2 --stats
  oreflow solve maps/small.txt -f text,svg -o out/small`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.solveOptions(cmd, args[0], &f)
			if err != nil {
				return err
			}
			return c.runSolve(cmd.Context(), cmd.OutOrStdout(), opts, &f)
		},
	}

	f.modelFlags.register(cmd)
	f.solverFlags.register(cmd)
	cmd.Flags().StringVarP(&f.formats, "format", "f", pipeline.FormatText, "output formats: text, json, dot, svg (comma-separated)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&f.terrain, "terrain", false, "draw unused cells with their map symbols")
	cmd.Flags().BoolVar(&f.detailed, "detailed", false, "label flows in dot and svg output")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "print model statistics")

	return cmd
}

// solveOptions merges config and flags into pipeline options.
func (c *CLI) solveOptions(cmd *cobra.Command, mapPath string, f *solveFlags) (pipeline.Options, error) {
	opts, err := c.baseOptions()
	if err != nil {
		return opts, err
	}
	opts.MapPath = mapPath
	f.modelFlags.apply(cmd, &opts)
	f.solverFlags.apply(cmd, &opts)
	opts.Formats = parseFormats(f.formats)
	opts.Terrain = f.terrain
	opts.Detailed = f.detailed
	if err := pipeline.ValidateFormats(opts.Formats); err != nil {
		return opts, err
	}
	return opts, nil
}

// runSolve executes the pipeline and writes the layout.
func (c *CLI) runSolve(ctx context.Context, out io.Writer, opts pipeline.Options, f *solveFlags) error {
	runner, err := c.newRunner(ctx, f.noCache, "")
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, err := c.execute(ctx, runner, opts)
	if err != nil {
		return err
	}

	if f.stats {
		printModelStats(res.Model.Stats())
		printNewline()
	}

	if !res.Solution.IsOptimal() {
		return reportNonOptimal(out, res)
	}

	if f.output == "" {
		if err := printArtifacts(out, res, opts); err != nil {
			return err
		}
		printSuccess("Export %s", fmtRate(res.Solution.Objective))
		printSolveStats(len(res.Layout.Machines), len(res.Layout.Belts), res.Stats.Nodes, res.CacheInfo.SolutionHit)
		return nil
	}

	paths, err := writeArtifacts(f.output, opts.Formats, res.Artifacts)
	if err != nil {
		return err
	}
	printSuccess("Layout complete: export %s", fmtRate(res.Solution.Objective))
	for _, p := range paths {
		printFile(p)
	}
	printSolveStats(len(res.Layout.Machines), len(res.Layout.Belts), res.Stats.Nodes, res.CacheInfo.SolutionHit)
	printNewline()
	printNextStep("Explore", "oreflow view "+opts.MapPath)
	return nil
}

// execute runs the pipeline with a spinner and solver progress logging.
// An interrupt surfaces as context.Canceled.
func (c *CLI) execute(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	var spinner *Spinner
	if !c.verbose && isTerminal(os.Stderr) {
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Solving %s...", filepath.Base(opts.MapPath)))
		spinner.Start()
	}
	prog := newSolveProgress(c.Logger, opts.Timeout, spinner)
	opts.Progress = prog.report
	timer := startStage(c.Logger)

	res, err := runner.Execute(ctx, opts)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !res.CacheInfo.SolutionHit {
		prog.summary()
	}
	timer.done("Solved %dx%d map: %s", res.Stats.Width, res.Stats.Height, res.Solution.Status)
	return res, nil
}

// reportNonOptimal prints the fixed no-solution message with the status.
// The best incumbent, if any, is mentioned but never drawn.
func reportNonOptimal(out io.Writer, res *pipeline.Result) error {
	if _, err := fmt.Fprintf(out, "%s (status: %s)\n", pipeline.NoOptimalMessage, res.Solution.Status); err != nil {
		return err
	}
	if res.Solution.Values != nil {
		printWarning("Search stopped before proving optimality")
		printDetail("best export found before stopping: %s", fmtRate(res.Solution.Objective))
	}
	return nil
}
