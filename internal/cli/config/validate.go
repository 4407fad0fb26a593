package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.StatePath == "" {
		errs = append(errs, fmt.Errorf("state_path is required"))
	}
	if c.OutputFormat != "" && output.Mode(c.OutputFormat) == output.ModeAuto && c.OutputFormat != string(output.ModeAuto) {
		errs = append(errs, fmt.Errorf("unknown output format %q (expected auto, text, markdown or json)", c.OutputFormat))
	}
	if c.Grid != nil {
		errs = append(errs, c.Grid.Validate())
	}
	if c.Export != nil {
		errs = append(errs, c.Export.Validate())
	}
	if c.Serve != nil {
		errs = append(errs, c.Serve.Validate())
	}
	for _, key := range inputs.SortedKeys(c.Inputs) {
		if _, ok := inputs.Lookup(strings.ToLower(key)); !ok {
			errs = append(errs, fmt.Errorf("inputs.%s: %w", key, inputs.ErrUnknownField))
		}
	}

	return errors.Join(errs...)
}
