package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
	"github.com/spf13/cobra"
)

// InputsOutput is the JSON output for the inputs commands.
type InputsOutput struct {
	Inputs map[string]string `json:"inputs"`
	Stored bool              `json:"stored"`
}

// NewInputsCommand creates the inputs command and its subcommands.
func NewInputsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inputs",
		Short: "Show and manage the saved inputs",
		Long: `Show and manage the nine saved inputs (start, step and max for SPH, CYL
and Axis). Saved inputs are used by generate, preview, count and serve.

Keys: ` + strings.Join(inputs.Keys(), ", "),
	}

	cmd.AddCommand(
		newInputsShowCommand(),
		newInputsSetCommand(),
		newInputsLoadCommand(),
		newInputsSaveCommand(),
		newInputsResetCommand(),
		newInputsEditCommand(),
	)
	return cmd
}

func newInputsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			form, stored, err := state.LoadForm(cmd.Context(), cmdCtx.Store, cmdCtx.Cfg.DefaultInputs())
			if err != nil {
				return err
			}
			return renderInputs(cmdCtx.Renderer, form, stored)
		},
	}
}

func newInputsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>=<value>...",
		Short: "Change one or more inputs",
		Example: `  lensgrid inputs set sph_max=4 axis_step=5`,
		Args:    cobra.MinimumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			keys := inputs.Keys()
			for i, k := range keys {
				keys[i] = k + "="
			}
			return keys, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			form, _, err := state.LoadForm(cmd.Context(), cmdCtx.Store, cmdCtx.Cfg.DefaultInputs())
			if err != nil {
				return err
			}
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid assignment %q, expected key=value", arg)
				}
				if err := form.Set(strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)); err != nil {
					return err
				}
			}
			return saveInputs(cmd, cmdCtx, form)
		},
	}
}

func newInputsLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Load inputs from a .json, .yaml or .xlsx file",
		Long: `Load inputs from a file and save them. Keys missing from the file keep
their current value; unknown keys are ignored. An .xlsx file is read from
its first sheet, which must have Field and Value header columns.`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return []string{"json", "yaml", "yml", "xlsx"}, cobra.ShellCompDirectiveFilterFileExt
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := inputs.LoadFile(args[0])
			if err != nil {
				return err
			}
			form, _, err := state.LoadForm(cmd.Context(), cmdCtx.Store, cmdCtx.Cfg.DefaultInputs())
			if err != nil {
				return err
			}
			if err := form.Apply(data); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return saveInputs(cmd, cmdCtx, form)
		},
	}
}

func newInputsSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Write the current inputs to a .json, .yaml or .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			form, _, err := state.LoadForm(cmd.Context(), cmdCtx.Store, cmdCtx.Cfg.DefaultInputs())
			if err != nil {
				return err
			}
			if err := inputs.SaveFile(args[0], form); err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(map[string]string{"path": args[0]})
			}
			r.Success("Saved inputs to " + args[0])
			return nil
		},
	}
}

func newInputsResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved inputs and return to the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Store.ClearInputs(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Logger.Info("cleared saved inputs")
			return renderInputs(cmdCtx.Renderer, cmdCtx.Cfg.DefaultInputs(), false)
		},
	}
}

func newInputsEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the inputs interactively",
		Long: `Prompt for each input in turn. Press Enter to keep the current value.
Nothing is saved if the new values are invalid or editing is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			form, _, err := state.LoadForm(cmd.Context(), cmdCtx.Store, cmdCtx.Cfg.DefaultInputs())
			if err != nil {
				return err
			}

			p, err := newPrompter(cmd, historyPath(cmdCtx.Cfg.StatePath))
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			form, err = editForm(form, p)
			if err != nil {
				return err
			}
			return saveInputs(cmd, cmdCtx, form)
		},
	}
}

// saveInputs validates form, stores it and shows the result.
func saveInputs(cmd *cobra.Command, cmdCtx *CommandContext, form inputs.Form) error {
	if _, err := form.Parse(); err != nil {
		return err
	}
	if err := state.SaveForm(cmd.Context(), cmdCtx.Store, form); err != nil {
		return err
	}
	cmdCtx.Logger.Info("saved inputs")
	return renderInputs(cmdCtx.Renderer, form, true)
}

func renderInputs(r *output.Renderer, form inputs.Form, stored bool) error {
	if r.IsJSON() {
		return r.JSON(InputsOutput{Inputs: form.Map(), Stored: stored})
	}

	rows := make([][]any, 0, len(inputs.Fields))
	for _, f := range inputs.Fields {
		v, _ := form.Get(f.Key)
		rows = append(rows, []any{f.Label, f.Key, v})
	}
	r.Header(1, "Inputs")
	r.Table([]string{"Field", "Key", "Value"}, rows)
	if !stored {
		r.Println(r.Styles().Muted.Render("Defaults (nothing saved yet)"))
	}
	return nil
}
