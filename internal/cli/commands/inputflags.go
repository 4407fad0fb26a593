package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
	"github.com/spf13/cobra"
)

// InputFlags holds the --input file and the per-field override flags
// shared by commands that generate a grid.
type InputFlags struct {
	File   string
	values map[string]*string
}

// flagName returns the flag for an input key: sph_start becomes sph-start.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// addInputFlags registers --input and one flag per input field on cmd.
func addInputFlags(cmd *cobra.Command) *InputFlags {
	f := &InputFlags{values: make(map[string]*string, len(inputs.Fields))}

	cmd.Flags().StringVar(&f.File, "input", "", "Load inputs from a .json, .yaml or .xlsx file")
	_ = cmd.MarkFlagFilename("input", "json", "yaml", "yml", "xlsx")

	for _, field := range inputs.Fields {
		f.values[field.Key] = cmd.Flags().String(flagName(field.Key), "", field.Label)
	}
	return f
}

// resolve builds the form for a run. Later sources override earlier ones:
// defaults, stored inputs, the --input file, then per-field flags.
func (f *InputFlags) resolve(cmd *cobra.Command, cc *CommandContext) (inputs.Form, error) {
	form, _, err := state.LoadForm(cmd.Context(), cc.Store, cc.Cfg.DefaultInputs())
	if err != nil {
		return form, err
	}

	if f.File != "" {
		data, err := inputs.LoadFile(f.File)
		if err != nil {
			return form, err
		}
		if err := form.Apply(data); err != nil {
			return form, fmt.Errorf("%s: %w", f.File, err)
		}
		cc.Logger.Debug("loaded inputs file", "path", f.File)
	}

	for _, field := range inputs.Fields {
		if cmd.Flags().Changed(flagName(field.Key)) {
			if err := form.Set(field.Key, *f.values[field.Key]); err != nil {
				return form, err
			}
		}
	}
	return form, nil
}
