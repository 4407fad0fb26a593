package commands

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/lensgrid/internal/cli/config"
	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// errDoctorFailed is returned when at least one check fails.
var errDoctorFailed = errors.New("health check failed")

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, markdown, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration, state and current inputs",
		Long: `Check that lensgrid is ready to export:

- Config: which config file is in use
- State: the state database opens and is migrated
- Inputs: the saved inputs are valid
- Export: the export directory is writable
- Grid: the grid fits the point limit and an .xlsx worksheet

Exits with an error if any check fails.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  lensgrid doctor

  # Output as JSON
  lensgrid doctor --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile      string        `json:"config_file,omitempty"`
	StatePath       string        `json:"state_path"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Recommendations []string      `json:"recommendations"`
	ErrorCount      int           `json:"error_count"`
	WarningCount    int           `json:"warning_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Group  string `json:"group"`
	Status string `json:"status"` // "pass", "warn", "error"
	Detail string `json:"detail,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	out := diagnose(cmd, cmdCtx)

	var err error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}
	if out.ErrorCount > 0 {
		return fmt.Errorf("%w: %d problem(s) found", errDoctorFailed, out.ErrorCount)
	}
	return nil
}

// diagnose runs every check. The grid checks are skipped when the inputs
// don't parse.
func diagnose(cmd *cobra.Command, cmdCtx *CommandContext) *DoctorOutput {
	cfg := cmdCtx.Cfg
	out := &DoctorOutput{
		ConfigFile: config.GetConfigFileUsed(),
		StatePath:  cfg.StatePath,
	}
	add := func(c HealthCheck) {
		out.HealthChecks = append(out.HealthChecks, c)
	}

	add(checkConfigFile(out.ConfigFile))

	form := cfg.DefaultInputs()
	store, err := state.OpenStore(cfg.StatePath, cmdCtx.Logger)
	if err != nil {
		add(HealthCheck{ID: "ST01", Name: "State database", Group: "state", Status: statusError, Detail: err.Error()})
	} else {
		defer func() { _ = store.Close() }()
		add(checkMigrations(store))

		var stored bool
		form, stored, err = state.LoadForm(cmd.Context(), store, form)
		if err != nil {
			add(HealthCheck{ID: "ST02", Name: "Saved inputs", Group: "state", Status: statusError, Detail: err.Error()})
		} else {
			detail := "none saved, using defaults"
			if stored {
				detail = "loaded"
			}
			add(HealthCheck{ID: "ST02", Name: "Saved inputs", Group: "state", Status: statusPass, Detail: detail})
		}
	}

	params, parseErr := form.Parse()
	if parseErr != nil {
		add(HealthCheck{ID: "IN01", Name: "Inputs valid", Group: "inputs", Status: statusError, Detail: parseErr.Error()})
	} else {
		add(HealthCheck{ID: "IN01", Name: "Inputs valid", Group: "inputs", Status: statusPass})
	}

	expCfg := cfg.GetExportConfig()
	add(checkExportDir(expCfg.Dir))

	if parseErr == nil {
		for _, c := range checkGrid(cmdCtx.Generator(), params, expCfg.Format) {
			add(c)
		}
	}

	sort.SliceStable(out.HealthChecks, func(i, j int) bool {
		return groupOrder(out.HealthChecks[i].Group) < groupOrder(out.HealthChecks[j].Group)
	})

	for _, c := range out.HealthChecks {
		switch c.Status {
		case statusError:
			out.ErrorCount++
		case statusWarn:
			out.WarningCount++
		}
	}
	out.Recommendations = generateRecommendations(out.HealthChecks)
	return out
}

var doctorGroups = []string{"config", "state", "inputs", "export", "grid"}

func groupOrder(group string) int {
	for i, g := range doctorGroups {
		if g == group {
			return i
		}
	}
	return len(doctorGroups)
}

func checkConfigFile(path string) HealthCheck {
	c := HealthCheck{ID: "CF01", Name: "Config file", Group: "config", Status: statusPass, Detail: path}
	if path == "" {
		c.Status = statusWarn
		c.Detail = "no " + config.ConfigFileNames[0] + " found, using defaults"
	}
	return c
}

// migrationChecker is implemented by stores that track schema versions.
type migrationChecker interface {
	GetMigrationVersion() (int64, error)
}

func checkMigrations(store state.Store) HealthCheck {
	c := HealthCheck{ID: "ST01", Name: "State database", Group: "state", Status: statusPass}
	mc, ok := store.(migrationChecker)
	if !ok {
		return c
	}
	v, err := mc.GetMigrationVersion()
	if err != nil {
		c.Status = statusError
		c.Detail = err.Error()
		return c
	}
	c.Detail = fmt.Sprintf("schema version %d", v)
	return c
}

// checkExportDir verifies the export directory exists and is writable.
// A missing directory is only a warning: exports create it.
func checkExportDir(dir string) HealthCheck {
	c := HealthCheck{ID: "EX01", Name: "Export directory", Group: "export", Status: statusPass, Detail: dir}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		c.Status = statusWarn
		c.Detail = dir + " does not exist and will be created"
		return c
	case err != nil:
		c.Status = statusError
		c.Detail = err.Error()
		return c
	case !info.IsDir():
		c.Status = statusError
		c.Detail = dir + " is not a directory"
		return c
	}

	f, err := os.CreateTemp(dir, ".lensgrid-doctor-*")
	if err != nil {
		c.Status = statusError
		c.Detail = dir + " is not writable"
		return c
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return c
}

func checkGrid(gen *grid.Generator, params grid.Params, format string) []HealthCheck {
	size := HealthCheck{ID: "GR01", Name: "Grid size", Group: "grid", Status: statusPass}
	counts, err := gen.Count(params)
	if err != nil {
		size.Status = statusError
		size.Detail = err.Error()
		return []HealthCheck{size}
	}
	size.Detail = fmt.Sprintf("%d x %d x %d = %d points", counts.SPH, counts.CYL, counts.Axis, counts.Total)
	if counts.Total == 0 {
		size.Status = statusWarn
		size.Detail = "the grid is empty"
	}

	sheet := HealthCheck{ID: "GR02", Name: "Worksheet limit", Group: "grid", Status: statusPass}
	limit := excelize.TotalRows - 1
	if counts.Total > limit {
		sheet.Detail = fmt.Sprintf("%d points exceed the %d rows of a worksheet", counts.Total, limit)
		sheet.Status = statusWarn
		if f, _ := export.ParseFormat(format); f == export.FormatXLSX {
			sheet.Status = statusError
		}
	}
	return []HealthCheck{size, sheet}
}

// generateRecommendations returns one recommendation per failing check.
func generateRecommendations(checks []HealthCheck) []string {
	recommendations := []string{}
	for _, c := range checks {
		if c.Status == statusPass {
			continue
		}
		if rec := getRecommendation(c.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Run 'lensgrid init' to create " + config.ConfigFileNames[0]
	case "ST01":
		return "Check state_path, or remove the state database to start over"
	case "ST02":
		return "Run 'lensgrid inputs reset' to clear the saved inputs"
	case "IN01":
		return "Fix the inputs with 'lensgrid inputs edit' (keys: " + strings.Join(inputs.Keys(), ", ") + ")"
	case "EX01":
		return "Set export.dir to a writable directory"
	case "GR01":
		return "Use larger steps or smaller ranges, or raise grid.max_points"
	case "GR02":
		return "Export as csv or json, or reduce the grid below the worksheet limit"
	default:
		return ""
	}
}

func statusLabel(status string) string {
	switch status {
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "PASS"
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println(styles.Header1.Render("lensgrid Health Report"))

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render(titleCaser.String(currentGroup)))
		}
		status := "success"
		switch check.Status {
		case statusWarn:
			status = "warning"
		case statusError:
			status = "error"
		}
		r.StatusLine(check.ID+" "+check.Name, status, check.Detail)
	}
	r.Println("")

	summary := fmt.Sprintf("%d error(s), %d warning(s)", out.ErrorCount, out.WarningCount)
	switch {
	case out.ErrorCount > 0:
		r.Println(styles.Error.Render(summary))
	case out.WarningCount > 0:
		r.Println(styles.Warning.Render(summary))
	default:
		r.Println(styles.Success.Render("All checks passed"))
	}

	if len(out.Recommendations) > 0 {
		r.Println("")
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("  %d. %s\n", i+1, rec)
		}
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# lensgrid Health Report")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			if currentGroup != "" {
				r.Println("")
			}
			currentGroup = check.Group
			r.Println("## " + titleCaser.String(currentGroup))
			r.Println("")
		}
		line := fmt.Sprintf("- **[%s]** %s: %s", statusLabel(check.Status), check.ID, check.Name)
		if check.Detail != "" {
			line += " (" + check.Detail + ")"
		}
		r.Println(line)
	}
	r.Println("")

	r.Printf("**%d error(s), %d warning(s)**\n", out.ErrorCount, out.WarningCount)

	if len(out.Recommendations) > 0 {
		r.Println("")
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
	}
}
