package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/leapstack-labs/lensgrid/internal/cli/config"
	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/leapstack-labs/lensgrid/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    state.Store
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open state store and
// a renderer. Returns the context and a cleanup function that must be
// called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := state.OpenStore(cfg.StatePath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state database %s: %w", cfg.StatePath, err)
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    store,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for commands that don't touch saved state.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Generator returns a grid generator configured from the grid settings.
func (c *CommandContext) Generator() *grid.Generator {
	return grid.New(c.Cfg.GetGridConfig().GeneratorOptions())
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	cfg := &config.Config{
		StatePath:    getEnvOrDefault(config.EnvPrefix+"STATE_PATH", config.DefaultStateFile),
		Verbose:      os.Getenv(config.EnvPrefix+"VERBOSE") == "true",
		OutputFormat: os.Getenv(config.EnvPrefix + "OUTPUT"),
	}
	gridCfg := cfg.GetGridConfig()
	if v := os.Getenv(config.EnvPrefix + "GRID__MAX_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			gridCfg.MaxPoints = n
		}
	}
	cfg.GetExportConfig()
	cfg.GetServeConfig()
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
