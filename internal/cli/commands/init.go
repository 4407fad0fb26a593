package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/leapstack-labs/lensgrid/internal/cli/config"
	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/spf13/cobra"
)

const defaultTemplate = "default"

// InitOutput is the JSON output for the init command.
type InitOutput struct {
	Dir     string   `json:"dir"`
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a lensgrid project",
		Long: `Create a lensgrid project in the given directory (default: current).

This creates:
  - lensgrid.yaml   configuration with every setting and its default
  - inputs.yaml     an inputs file for --input and watch
  - .gitignore      ignores the .lensgrid state directory`,
		Example: `  # Initialize in the current directory
  lensgrid init

  # Initialize in a new directory
  lensgrid init lenses

  # Overwrite existing files
  lensgrid init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configName := config.ConfigFileNames[0]
	if existing := existingConfig(dir); existing != "" && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", existing)
	}

	created, err := copyTemplate(defaultTemplate, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	all, err := listTemplateFiles(defaultTemplate)
	if err != nil {
		return err
	}

	out := InitOutput{Dir: dir, Created: created, Skipped: []string{}}
	if out.Created == nil {
		out.Created = []string{}
	}
	for _, f := range all {
		if !slices.Contains(created, f) {
			out.Skipped = append(out.Skipped, f)
		}
	}

	if r.IsJSON() {
		return r.JSON(out)
	}

	for _, f := range out.Created {
		r.StatusLine(f, "success", "")
	}
	for _, f := range out.Skipped {
		r.StatusLine(f, "warning", "exists, skipped")
	}

	r.Println("")
	r.Success("lensgrid project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Printf("  1. Review %s\n", filepath.Join(dir, configName))
	r.Println("  2. Run 'lensgrid count' to check the grid size")
	r.Println("  3. Run 'lensgrid generate' to export the grid")

	return nil
}

// existingConfig returns the name of a config file already in dir.
func existingConfig(dir string) string {
	for _, name := range config.ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name
		}
	}
	return ""
}
