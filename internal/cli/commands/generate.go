package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/lensgrid/internal/cli/config"
	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	sharedcfg "github.com/leapstack-labs/lensgrid/internal/config"
	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
	"github.com/spf13/cobra"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Format string
	NoSave bool
	Inputs *InputFlags
}

// GenerateOutput is the JSON output for the generate command.
type GenerateOutput struct {
	*export.Result
	ExportID string `json:"export_id,omitempty"`
	Saved    bool   `json:"saved"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:     "generate [file]",
		Aliases: []string{"export"},
		Short:   "Generate the lens grid and export it to a spreadsheet",
		Long: `Generate every (SPH, CYL, Axis) combination for the current inputs and
write them to a file with the columns SPH, CYL and Axis.

Inputs are taken from the saved state (or the defaults on first run), then
from --input, then from the per-field flags. After a successful export the
inputs are saved for next time and the export is recorded in the history.

The format is taken from --format, then from the file extension, then from
the export.format setting (default xlsx). Without a file argument the name
is built from export.dir and export.file_pattern.`,
		Example: `  # Export with the saved inputs
  lensgrid generate

  # Export to a named CSV file
  lensgrid generate grid.csv

  # Override a few fields
  lensgrid generate --sph-max 4 --axis-step 5 grid.xlsx

  # Load inputs from a file without saving them
  lensgrid generate --input inputs.yaml --no-save`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Export format (xlsx|csv|json)")
	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "Do not save the inputs or record the export")
	opts.Inputs = addInputFlags(cmd)

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		formats := make([]string, 0, len(export.Formats()))
		for _, f := range export.Formats() {
			formats = append(formats, string(f))
		}
		return formats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string, opts *GenerateOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	form, err := opts.Inputs.resolve(cmd, cmdCtx)
	if err != nil {
		return err
	}

	var file string
	if len(args) > 0 {
		file = args[0]
	}
	path, format, err := outputTarget(cmdCtx.Cfg.GetExportConfig(), file, opts.Format, time.Now())
	if err != nil {
		return err
	}

	out, err := exportGrid(cmd.Context(), cmdCtx, form, path, format, !opts.NoSave)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.IsJSON() {
		return r.JSON(out)
	}
	renderExport(r, out)
	return nil
}

// outputTarget decides the export path and format.
func outputTarget(cfg *config.ExportConfig, file, formatFlag string, now time.Time) (string, export.Format, error) {
	var format export.Format
	switch {
	case formatFlag != "":
		f, err := export.ParseFormat(formatFlag)
		if err != nil {
			return "", "", err
		}
		format = f
	case file != "":
		if f, ok := export.FormatFromPath(file); ok {
			format = f
		}
	}
	if format == "" {
		f, err := export.ParseFormat(cfg.Format)
		if err != nil {
			return "", "", err
		}
		format = f
	}

	if file == "" {
		name := strings.ReplaceAll(cfg.FilePattern, "{time}", now.Format(sharedcfg.DefaultTimeLayout))
		return filepath.Join(cfg.Dir, name+format.Ext()), format, nil
	}
	if filepath.Ext(file) == "" {
		file += format.Ext()
	}
	return file, format, nil
}

// exportGrid validates form, writes the grid to path and, when save is
// set, stores the inputs and records the export together. Nothing is
// stored when validation, the export or either write fails.
func exportGrid(ctx context.Context, cmdCtx *CommandContext, form inputs.Form, path string, format export.Format, save bool) (*GenerateOutput, error) {
	params, err := form.Parse()
	if err != nil {
		return nil, err
	}

	expCfg := cmdCtx.Cfg.GetExportConfig()
	start := time.Now()
	res, err := export.WriteFile(path, format, cmdCtx.Generator(), params, export.Options{Sheet: expCfg.Sheet})
	if err != nil {
		return nil, err
	}
	cmdCtx.Logger.Info("exported grid",
		"path", res.Path,
		"format", res.Format,
		"rows", res.Rows,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	out := &GenerateOutput{Result: res}
	if !save {
		return out, nil
	}

	recordPath := path
	if abs, err := filepath.Abs(path); err == nil {
		recordPath = abs
	}
	rec := &state.Export{
		Path:   recordPath,
		Format: string(format),
		Rows:   res.Rows,
		Inputs: form.Map(),
	}
	if err := cmdCtx.Store.SaveExport(ctx, rec.Inputs, rec); err != nil {
		return nil, fmt.Errorf("exported %s but failed to save it: %w", path, err)
	}
	out.ExportID = rec.ID
	out.Saved = true
	return out, nil
}

func renderExport(r *output.Renderer, out *GenerateOutput) {
	r.Success(fmt.Sprintf("Exported %s points to %s", r.Number(out.Rows), out.Path))
	r.KeyValue("Format", string(out.Format))
	r.KeyValue("SPH values", r.Number(out.Counts.SPH))
	r.KeyValue("CYL values", r.Number(out.Counts.CYL))
	r.KeyValue("Axis values", r.Number(out.Counts.Axis))
	if !out.Saved {
		r.Warning("Inputs not saved (--no-save)")
	}
}
