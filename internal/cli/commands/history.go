package commands

import (
	"time"

	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
	"github.com/spf13/cobra"
)

const shortIDLen = 8

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [export-id]",
		Short: "List recorded exports",
		Long: `List recorded exports, most recent first. With an export ID (or a unique
prefix of one) show that export and the inputs it was generated from.`,
		Example: `  # Last 20 exports
  lensgrid history

  # Details of one export
  lensgrid history 3f2a9c1e`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				e, err := cmdCtx.Store.GetExport(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderExportDetail(cmdCtx.Renderer, e)
			}

			exports, err := cmdCtx.Store.ListExports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderHistory(cmdCtx.Renderer, exports)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of exports to list (0 for all)")

	return cmd
}

func renderHistory(r *output.Renderer, exports []*state.Export) error {
	if r.IsJSON() {
		if exports == nil {
			exports = []*state.Export{}
		}
		return r.JSON(exports)
	}

	if len(exports) == 0 {
		r.Println("No exports recorded yet. Run 'lensgrid generate' to create one.")
		return nil
	}

	rows := make([][]any, 0, len(exports))
	for _, e := range exports {
		id := e.ID
		if len(id) > shortIDLen {
			id = id[:shortIDLen]
		}
		rows = append(rows, []any{id, e.CreatedAt.Local().Format(time.DateTime), e.Format, r.Number(e.Rows), e.Path})
	}
	r.Header(1, "Export History")
	r.Table([]string{"ID", "Created", "Format", "Rows", "Path"}, rows)
	return nil
}

func renderExportDetail(r *output.Renderer, e *state.Export) error {
	if r.IsJSON() {
		return r.JSON(e)
	}

	r.Header(1, "Export "+e.ID)
	r.KeyValue("Path", e.Path)
	r.KeyValue("Format", e.Format)
	r.KeyValue("Rows", r.Number(e.Rows))
	r.KeyValue("Created", e.CreatedAt.Local().Format(time.DateTime))
	r.Println("")

	rows := make([][]any, 0, len(e.Inputs))
	for _, key := range inputs.SortedKeys(e.Inputs) {
		label := key
		if f, ok := inputs.Lookup(key); ok {
			label = f.Label
		}
		rows = append(rows, []any{label, e.Inputs[key]})
	}
	r.Header(2, "Inputs")
	r.Table([]string{"Field", "Value"}, rows)
	return nil
}
