package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/oreflow/internal/server"
)

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		maxCells int
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Routes:
  GET  /healthz           liveness and version
  POST /v1/solve          solve one map (JSON request and response)
  GET  /v1/solve/stream   websocket: send one request, receive progress, then the result

Rates, ore counting, symbols and the solver timeout default to the config
file; a request may override the rates and lower the timeout. The cache
backend comes from the config file, so several servers can share Redis or
MongoDB.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.Config{Addr: c.cfg.Server.Addr, MaxCells: c.cfg.Server.MaxCells}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("max-cells") {
				cfg.MaxCells = maxCells
			}
			return c.runServe(cmd.Context(), cfg, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&maxCells, "max-cells", 400, "reject maps with more cells (0 disables)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg server.Config, noCache bool) error {
	defaults, err := c.baseOptions()
	if err != nil {
		return err
	}
	cfg.Defaults = defaults

	runner, err := c.newRunner(ctx, noCache, serveScope)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	srv, err := server.New(runner, cfg, c.Logger)
	if err != nil {
		return err
	}
	c.Logger.Info("starting server",
		"addr", cfg.Addr,
		"cache", c.cfg.Cache.Backend,
		"history", runner.History != nil)
	return srv.ListenAndServe(ctx)
}
