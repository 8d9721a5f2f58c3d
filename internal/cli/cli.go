package cli

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/oreflow/pkg/buildinfo"
	"github.com/matzehuels/oreflow/pkg/cache"
	"github.com/matzehuels/oreflow/pkg/config"
	"github.com/matzehuels/oreflow/pkg/history"
	"github.com/matzehuels/oreflow/pkg/observability"
	"github.com/matzehuels/oreflow/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "oreflow"

	// cachePrefix marks the entries oreflow owns in shared backends.
	cachePrefix = appName + ":"

	// serveScope keeps server entries apart from CLI runs.
	serveScope = "serve:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitError
	}
}

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	verbose    bool
	configPath string

	// cfg is resolved once per invocation by the root pre-run hook.
	cfg     config.Config
	cfgFrom string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "oreflow lays out mining machines and belts on an ore map",
		Long: `oreflow reads a grid of ore, empty and inaccessible cells and places 2x2
mining machines and directional belts so that the ore exported off the map
edge is as large as possible. The layout is found by solving a mixed-integer
linear program with branch and bound.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
				observability.NewLogHooks(c.Logger).Install()
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (.toml, .yaml or .yml)")

	root.AddCommand(c.solveCommand())
	root.AddCommand(c.modelCommand())
	root.AddCommand(c.viewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig resolves --config, then the default config file, then the
// built-in defaults.
func (c *CLI) loadConfig() error {
	cfg, from, err := config.Resolve(c.configPath)
	if err != nil {
		return err
	}
	c.cfg, c.cfgFrom = cfg, from
	if from != "" {
		c.Logger.Debug("loaded config", "path", from)
	}
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner. A non-empty scope prefixes every
// cache key. History is best effort: a store that cannot be opened is
// reported and skipped.
func (c *CLI) newRunner(ctx context.Context, noCache bool, scope string) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewDefaultKeyer()
	if scope != "" {
		keyer = cache.NewScopedKeyer(keyer, scope)
	}
	runner := pipeline.NewRunner(ch, keyer, c.Logger)
	runner.SolutionTTL = c.cfg.Cache.TTL.Std()

	if c.cfg.History.Enabled {
		store, err := history.Open(c.cfg.History.Path)
		if err != nil {
			c.Logger.Warn("run history disabled", "path", c.cfg.History.Path, "error", err)
		} else {
			runner.History = store
		}
	}
	return runner, nil
}

// newCache opens the configured cache backend.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cc := c.cfg.Cache
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cc.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cc.RedisURL, cachePrefix)
	case config.CacheMongo:
		return cache.NewMongoCache(ctx, cc.MongoURI, cc.MongoDatabase, cc.MongoCollection)
	default:
		ch, err := cache.NewFileCache(cc.Dir)
		if err != nil {
			c.Logger.Warn("caching disabled", "dir", cc.Dir, "error", err)
			return cache.NewNullCache(), nil
		}
		return ch, nil
	}
}

// =============================================================================
// Options Helpers
// =============================================================================

// baseOptions returns pipeline options carrying the configured defaults.
func (c *CLI) baseOptions() (pipeline.Options, error) {
	alphabet, err := c.cfg.GridAlphabet()
	if err != nil {
		return pipeline.Options{}, err
	}
	glyphs, err := c.cfg.RenderGlyphs()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		MaxMachineOutput: c.cfg.Rates.MaxMachineOutput,
		MaxBeltOutput:    c.cfg.Rates.MaxBeltOutput,
		OreCounting:      c.cfg.Model.OreCounting,
		Timeout:          c.cfg.Solver.Timeout.Std(),
		NodeLimit:        c.cfg.Solver.NodeLimit,
		KeepIdle:         !c.cfg.Model.Prune,
		Alphabet:         alphabet,
		Glyphs:           glyphs,
		Logger:           c.Logger,
	}, nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatText}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
