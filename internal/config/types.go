// Package config provides shared configuration types for lensgrid.
// This package is decoupled from CLI concerns so the HTTP server and the
// watcher can be configured from the same values.
package config

import (
	"fmt"

	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/grid"
)

// GridConfig holds generator settings.
type GridConfig struct {
	// MaxPoints rejects grids larger than this. Zero disables the limit.
	MaxPoints int `koanf:"max_points"`
	// InclusiveAxis applies the SPH/CYL epsilon to the axis bound too.
	InclusiveAxis bool `koanf:"inclusive_axis"`
}

// GeneratorOptions converts the config into generator options.
func (g *GridConfig) GeneratorOptions() grid.Options {
	return grid.Options{
		MaxPoints:     g.MaxPoints,
		InclusiveAxis: g.InclusiveAxis,
	}
}

// Validate checks if the grid configuration is valid.
func (g *GridConfig) Validate() error {
	if g.MaxPoints < 0 {
		return fmt.Errorf("grid.max_points must not be negative, got %d", g.MaxPoints)
	}
	return nil
}

// ExportConfig holds spreadsheet export settings.
type ExportConfig struct {
	Dir    string `koanf:"dir"`
	Format string `koanf:"format"`
	Sheet  string `koanf:"sheet"`
	// FilePattern is the default output file name without extension.
	// "{time}" is replaced with the current time in DefaultTimeLayout.
	FilePattern string `koanf:"file_pattern"`
}

// Validate checks if the export configuration is valid.
func (e *ExportConfig) Validate() error {
	if e.Format != "" {
		if _, err := export.ParseFormat(e.Format); err != nil {
			return fmt.Errorf("export.format: %w", err)
		}
	}
	return nil
}

// ServeConfig holds HTTP API settings.
type ServeConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
}

// Addr returns the listen address.
func (s *ServeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks if the serve configuration is valid.
func (s *ServeConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("serve.port out of range: %d", s.Port)
	}
	return nil
}
