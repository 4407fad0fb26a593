package commands

import (
	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/spf13/cobra"
)

// NewCountCommand creates the count command.
func NewCountCommand() *cobra.Command {
	var inputFlags *InputFlags

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count grid points without generating them",
		Long: `Report how many values each axis produces for the current inputs and the
resulting number of grid points.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCount(cmd, inputFlags)
		},
	}
	inputFlags = addInputFlags(cmd)

	return cmd
}

func runCount(cmd *cobra.Command, inputFlags *InputFlags) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	form, err := inputFlags.resolve(cmd, cmdCtx)
	if err != nil {
		return err
	}
	params, err := form.Parse()
	if err != nil {
		return err
	}
	counts, err := cmdCtx.Generator().Count(params)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.IsJSON() {
		return r.JSON(counts)
	}
	renderCounts(r, params, counts)
	return nil
}

func renderCounts(r *output.Renderer, p grid.Params, c grid.Counts) {
	r.Header(1, "Grid Size")
	r.Table([]string{"Axis", "Start", "Step", "Max", "Values"}, [][]any{
		{"SPH", p.SPH.Start, p.SPH.Step, p.SPH.Max, r.Number(c.SPH)},
		{"CYL", p.CYL.Start, p.CYL.Step, p.CYL.Max, r.Number(c.CYL)},
		{"Axis", p.Axis.Start, p.Axis.Step, p.Axis.Max, r.Number(c.Axis)},
	})
	r.Printf("Total: %s points\n", r.Number(c.Total))
}
