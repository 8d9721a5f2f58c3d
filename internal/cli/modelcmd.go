package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/pipeline"
)

// modelCommand creates the model command, which builds the program for a
// map without solving it.
func (c *CLI) modelCommand() *cobra.Command {
	var (
		f      modelFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "model [map]",
		Short: "Build the model for a map and print its size",
		Long: `Build the mixed-integer program for a map and print how many machine and
belt candidates, flow variables and constraints it has, without solving it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.baseOptions()
			if err != nil {
				return err
			}
			opts.MapPath = args[0]
			f.apply(cmd, &opts)
			return c.runModel(cmd, opts, asJSON)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

func (c *CLI) runModel(cmd *cobra.Command, opts pipeline.Options, asJSON bool) error {
	ctx := cmd.Context()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	timer := startStage(loggerFromContext(ctx))

	g, err := pipeline.Load(ctx, opts)
	if err != nil {
		return err
	}
	m, err := pipeline.Build(ctx, g, opts)
	if err != nil {
		return err
	}
	timer.done("Built model for %dx%d map", g.Width(), g.Height())

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, m.Stats())
	}
	_, err = fmt.Fprintln(out, modelStatsTable(m.Stats(), m.Params()))
	return err
}

// modelStatsTable renders model statistics as a two-column table.
func modelStatsTable(st model.Stats, p model.Params) string {
	itoa := strconv.Itoa
	rows := [][]string{
		{"map", fmt.Sprintf("%dx%d", st.Width, st.Height)},
		{"rates", fmt.Sprintf("machine %s, belt %s", fmtRate(p.MaxMachineOutput), fmtRate(p.MaxBeltOutput))},
		{"ore counting", string(p.OreCounting)},
		{"machines", itoa(st.Machines)},
		{"machine flows", itoa(st.MachineFlows)},
		{"belts", itoa(st.Belts)},
		{"belt flows", itoa(st.BeltFlows)},
		{"exports", itoa(st.Exports)},
		{"variables", itoa(st.Variables)},
		{"gating", itoa(st.Gating)},
		{"overlap", itoa(st.Overlap)},
		{"conservation", itoa(st.Conservation)},
		{"global", itoa(st.Global)},
		{"constraints", itoa(st.Constraints)},
	}
	return renderTable([]string{"model", "value"}, rows)
}

// printModelStats prints the variable and constraint counts to the status
// stream.
func printModelStats(st model.Stats) {
	printKeyValue("variables", strconv.Itoa(st.Variables))
	printKeyValue("constraints", strconv.Itoa(st.Constraints))
	printDetail("%d machines, %d belts, %d exports", st.Machines, st.Belts, st.Exports)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
