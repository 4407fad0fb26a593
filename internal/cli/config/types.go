// Package config provides configuration management for the lensgrid CLI.
//
// The shared section types (GridConfig, ExportConfig, ServeConfig) live in
// internal/config and are re-exported here via type aliases so commands only
// need this package.
package config

import (
	"strings"

	sharedcfg "github.com/leapstack-labs/lensgrid/internal/config"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
)

// GridConfig is an alias for the shared generator configuration.
type GridConfig = sharedcfg.GridConfig

// ExportConfig is an alias for the shared export configuration.
type ExportConfig = sharedcfg.ExportConfig

// ServeConfig is an alias for the shared HTTP API configuration.
type ServeConfig = sharedcfg.ServeConfig

// Config holds all CLI configuration options.
type Config struct {
	StatePath    string        `koanf:"state_path"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	Grid         *GridConfig   `koanf:"grid"`
	Export       *ExportConfig `koanf:"export"`
	Serve        *ServeConfig  `koanf:"serve"`
	// Inputs overrides the first-run input defaults.
	Inputs map[string]string `koanf:"inputs"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultStateFile = state.DefaultPath
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	EnvPrefix        = "LENSGRID_"
)

// ConfigFileNames are the file names searched for in the project root.
var ConfigFileNames = []string{"lensgrid.yaml", "lensgrid.yml"}

// GetGridConfig returns the grid config with defaults applied.
func (c *Config) GetGridConfig() *GridConfig {
	if c.Grid == nil {
		c.Grid = sharedcfg.DefaultGridConfig()
	}
	return c.Grid
}

// GetExportConfig returns the export config with defaults applied for any
// unset values.
func (c *Config) GetExportConfig() *ExportConfig {
	if c.Export == nil {
		c.Export = &ExportConfig{}
	}
	sharedcfg.ApplyExportDefaults(c.Export)
	return c.Export
}

// GetServeConfig returns the serve config with defaults applied for any
// unset values.
func (c *Config) GetServeConfig() *ServeConfig {
	if c.Serve == nil {
		c.Serve = &ServeConfig{}
	}
	sharedcfg.ApplyServeDefaults(c.Serve)
	return c.Serve
}

// DefaultInputs returns the first-run input form, with the config file's
// inputs section applied on top of the built-in defaults.
func (c *Config) DefaultInputs() inputs.Form {
	overrides := make(map[string]string, len(c.Inputs))
	for k, v := range c.Inputs {
		overrides[strings.ToLower(k)] = v
	}
	return inputs.FromMap(inputs.Defaults(), overrides)
}
