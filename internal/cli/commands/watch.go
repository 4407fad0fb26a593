package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
	"github.com/leapstack-labs/lensgrid/internal/watch"
	"github.com/spf13/cobra"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Format   string
	NoSave   bool
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <input-file> [file]",
		Short: "Regenerate the grid whenever an inputs file changes",
		Long: `Watch an inputs file (.json, .yaml or .xlsx) and export the grid each time
it is saved. The first export runs immediately.

Values in the file override the saved inputs. An invalid file is reported
and the previous export is left in place.`,
		Example: `  # Rewrite grid.xlsx whenever inputs.yaml changes
  lensgrid watch inputs.yaml grid.xlsx`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Export format (xlsx|csv|json)")
	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "Do not save the inputs or record the exports")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before regenerating")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *WatchOptions) error {
	inputFile := args[0]
	if !inputs.Supported(inputFile) {
		return fmt.Errorf("%s: %w", inputFile, inputs.ErrUnsupportedFile)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// A fixed target so every run rewrites the same file.
	var file string
	if len(args) > 1 {
		file = args[1]
	}
	path, format, err := outputTarget(cmdCtx.Cfg.GetExportConfig(), file, opts.Format, time.Now())
	if err != nil {
		return err
	}

	w, err := watch.New(inputFile, watch.Options{Debounce: opts.Debounce, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	regenerate := func(ctx context.Context) error {
		err := regenerateFromFile(ctx, cmdCtx, inputFile, path, format, !opts.NoSave)
		stamp := time.Now().Format(time.TimeOnly)
		if err != nil {
			r.StatusLine(inputFile, "error", fmt.Sprintf("%s %v", stamp, err))
			return err
		}
		r.StatusLine(path, "success", stamp)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.Printf("Watching %s, writing %s\n", w.Path(), path)
	r.Println(r.Styles().Muted.Render("Press Ctrl+C to stop"))

	if err := regenerate(ctx); err != nil {
		cmdCtx.Logger.Warn("initial export failed", "error", err)
	}
	return w.Run(ctx, regenerate)
}

// regenerateFromFile layers the inputs file over the saved inputs and
// exports the grid.
func regenerateFromFile(ctx context.Context, cmdCtx *CommandContext, inputFile, path string, format export.Format, save bool) error {
	data, err := inputs.LoadFile(inputFile)
	if err != nil {
		return err
	}
	form, _, err := state.LoadForm(ctx, cmdCtx.Store, cmdCtx.Cfg.DefaultInputs())
	if err != nil {
		return err
	}
	if err := form.Apply(data); err != nil {
		return fmt.Errorf("%s: %w", inputFile, err)
	}
	_, err = exportGrid(ctx, cmdCtx, form, path, format, save)
	return err
}
