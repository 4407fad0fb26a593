package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/spf13/cobra"
)

// errPreviewFull stops the walk once enough rows are collected.
var errPreviewFull = errors.New("preview full")

// PreviewOptions holds options for the preview command.
type PreviewOptions struct {
	Limit  int
	Inputs *InputFlags
}

// PreviewOutput is the JSON output for the preview command.
type PreviewOutput struct {
	Points []grid.Point `json:"points"`
	Counts grid.Counts  `json:"counts"`
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the first rows of the grid",
		Long: `Show the first rows of the grid for the current inputs without writing a
file. Accepts the same input flags as generate; nothing is saved.`,
		Example: `  # First 20 rows
  lensgrid preview

  # First 5 rows with a coarser axis step
  lensgrid preview --limit 5 --axis-step 45`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPreview(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of rows to show")
	opts.Inputs = addInputFlags(cmd)

	return cmd
}

func runPreview(cmd *cobra.Command, opts *PreviewOptions) error {
	if opts.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	form, err := opts.Inputs.resolve(cmd, cmdCtx)
	if err != nil {
		return err
	}
	params, err := form.Parse()
	if err != nil {
		return err
	}

	gen := cmdCtx.Generator()
	counts, err := gen.Count(params)
	if err != nil {
		return err
	}

	points := make([]grid.Point, 0, min(opts.Limit, counts.Total))
	if opts.Limit > 0 {
		err = gen.Walk(params, func(p grid.Point) error {
			points = append(points, p)
			if len(points) >= opts.Limit {
				return errPreviewFull
			}
			return nil
		})
		if err != nil && !errors.Is(err, errPreviewFull) {
			return err
		}
	}

	r := cmdCtx.Renderer
	if r.IsJSON() {
		return r.JSON(PreviewOutput{Points: points, Counts: counts})
	}

	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{export.FormatValue(p.SPH), export.FormatValue(p.CYL), export.FormatValue(p.Axis)}
	}
	r.Header(1, "Grid Preview")
	r.Table(export.Columns, rows)
	r.Printf("Showing %s of %s points\n", r.Number(len(points)), r.Number(counts.Total))
	return nil
}
