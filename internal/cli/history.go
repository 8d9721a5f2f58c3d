package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/history"
)

const (
	defaultHistoryLimit = 20

	// shortIDLen is how much of a run ID tables show.
	shortIDLen = 8
)

// historyCommand creates the history command and its subcommands.
func (c *CLI) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Long: `List recent runs, newest first.

Every solve is recorded in a local SQLite database (see [history] in the
config file) with its parameters, outcome and timing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(cmd.Context(), func(store *history.Store) error {
				return listRuns(cmd.Context(), cmd.OutOrStdout(), store, limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of runs to show")

	cmd.AddCommand(c.historyShowCommand())
	cmd.AddCommand(c.historyPruneCommand())
	return cmd
}

func (c *CLI) historyShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run (a unique ID prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(cmd.Context(), func(store *history.Store) error {
				run, err := findRun(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), run)
			})
		},
	}
}

func (c *CLI) historyPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New(errors.ErrCodeInvalidInput, "--older-than must be positive")
			}
			return c.withHistory(cmd.Context(), func(store *history.Store) error {
				n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				printSuccess("Deleted %d runs older than %s", n, olderThan)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete runs started before this long ago")
	return cmd
}

// withHistory opens the configured store for the duration of fn.
func (c *CLI) withHistory(ctx context.Context, fn func(*history.Store) error) error {
	if !c.cfg.History.Enabled {
		printInfo("Run history is disabled")
		printDetail("Enable it with [history] enabled = true in %s", configHint(c.cfgFrom))
		return nil
	}
	store, err := history.Open(c.cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history %s: %w", c.cfg.History.Path, err)
	}
	defer store.Close()
	loggerFromContext(ctx).Debug("opened history", "path", c.cfg.History.Path)
	return fn(store)
}

func listRuns(ctx context.Context, out io.Writer, store *history.Store, limit int) error {
	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		printInfo("No runs recorded yet")
		return nil
	}
	_, err = fmt.Fprintln(out, runsTable(runs))
	return err
}

// runsTable renders runs one per row.
func runsTable(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		cached := ""
		if r.CacheHit {
			cached = iconCached
		}
		status := r.Status
		if r.Error != "" {
			status += ": " + truncate(r.Error, 40)
		}
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.MapPath,
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			status,
			fmtRate(r.Objective),
			strconv.Itoa(r.Machines),
			strconv.Itoa(r.Belts),
			r.Duration.Round(time.Millisecond).String(),
			cached,
		})
	}
	return renderTable(
		[]string{"run", "started", "map", "size", "status", "export", "machines", "belts", "took", ""},
		rows)
}

// findRun resolves an exact run ID or a unique prefix of a recent one.
func findRun(ctx context.Context, store *history.Store, id string) (history.Run, error) {
	run, ok, err := store.Get(ctx, id)
	if err != nil {
		return history.Run{}, err
	}
	if ok {
		return run, nil
	}
	runs, err := store.List(ctx, 1000)
	if err != nil {
		return history.Run{}, err
	}
	var matches []history.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return history.Run{}, errors.New(errors.ErrCodeNotFound, "no run %q", id)
	case 1:
		return matches[0], nil
	default:
		return history.Run{}, errors.New(errors.ErrCodeInvalidInput, "run ID prefix %q is ambiguous (%d matches)", id, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func configHint(from string) string {
	if from != "" {
		return from
	}
	return "your config file"
}
