package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/lensgrid/internal/cli"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// inputResolution is the order in which grid commands build their inputs.
var inputResolution = []string{
	"Built-in defaults with the " + InlineCode("inputs:") + " section of " + InlineCode("lensgrid.yaml") + " applied",
	"Inputs saved by the last " + InlineCode("generate") + " or " + InlineCode("inputs set"),
	"The file given with " + InlineCode("--input") + " (.json, .yaml or .xlsx)",
	"Per-field flags such as " + InlineCode("--sph-max"),
}

// generateCLIDocs writes index.md and one page per visible command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	cmds := visibleCommands(root)

	if err := writePage(outDir, "index.md", cliIndex(root, cmds)); err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := writePage(outDir, cmd.Name()+".md", commandPage(cmd)); err != nil {
			return err
		}
	}
	return nil
}

func writePage(outDir, name string, w *MarkdownWriter) error {
	if err := os.WriteFile(filepath.Join(outDir, name), w.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Printf("  Generated %s", name)
	return nil
}

func visibleCommands(root *cobra.Command) []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// takesGridInputs reports whether cmd has the per-field input flags.
func takesGridInputs(cmd *cobra.Command) bool {
	return cmd.Flags().Lookup(inputFlag(inputs.Fields[0].Key)) != nil
}

func inputFlag(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func commandLink(cmd *cobra.Command) []string {
	link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
	return []string{link, cleanDescription(cmd.Short)}
}

func cliIndex(root *cobra.Command, cmds []*cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for lensgrid")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("lensgrid generates every (SPH, CYL, Axis) combination for a set of ranges and exports it as xlsx, csv or json.")
	w.CodeBlock("bash", "lensgrid <command> [options]")

	var gridRows, otherRows [][]string
	for _, cmd := range cmds {
		if takesGridInputs(cmd) {
			gridRows = append(gridRows, commandLink(cmd))
		} else {
			otherRows = append(otherRows, commandLink(cmd))
		}
	}
	w.Header(2, "Grid Commands")
	w.Paragraph("These commands accept the grid inputs as flags. See [Input Resolution](#input-resolution).")
	w.Table([]string{"Command", "Description"}, gridRows)
	w.Header(2, "Other Commands")
	w.Table([]string{"Command", "Description"}, otherRows)

	w.Header(2, "Input Resolution")
	w.Paragraph("Later sources override earlier ones, field by field:")
	w.NumberedList(inputResolution)

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Paragraph("Every " + InlineCode("lensgrid.yaml") + " key can be set from the environment. Nested keys join with a double underscore. Flags take precedence.")
	var envRows [][]string
	for _, f := range getConfigSchema() {
		envRows = append(envRows, []string{InlineCode(envVar(f)), f.Description})
	}
	w.Table([]string{"Variable", "Description"}, envRows)

	return w
}

// envVar returns the environment variable for a config key.
func envVar(f ConfigField) string {
	key := f.Name
	if f.Section != "" {
		key = f.Section + "__" + key
	}
	return "LENSGRID_" + strings.ToUpper(key)
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	w.Header(2, "Usage")
	use := cmd.UseLine()
	if cmd.HasAvailableSubCommands() {
		use = "lensgrid " + cmd.Name() + " <subcommand> [options]"
	}
	w.CodeBlock("bash", use)

	if len(cmd.Aliases) > 0 {
		aliases := make([]string, len(cmd.Aliases))
		for i, a := range cmd.Aliases {
			aliases[i] = InlineCode(a)
		}
		w.Paragraph("Aliases: " + strings.Join(aliases, ", "))
	}

	if cmd.HasAvailableSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if !sub.Hidden {
				rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
			}
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	gridInputs := takesGridInputs(cmd)
	if gridInputs {
		w.Header(2, "Grid Inputs")
		writeInputsTable(w)
		w.Paragraph("Unset flags fall back to earlier sources:")
		w.NumberedList(inputResolution)
	}

	if cmd.Flags().Lookup("format") != nil && cmd.Flags().Lookup("no-save") != nil {
		w.Header(2, "Export Format")
		w.Paragraph(InlineCode("--format") + " wins, then the extension of the output file, then " +
			InlineCode("export.format") + ". Without a file the name comes from " + InlineCode("export.file_pattern") +
			" inside " + InlineCode("export.dir") + ". Unless " + InlineCode("--no-save") +
			" is given the inputs are saved and the export is recorded in the history together.")
	}

	local := cmd.LocalFlags()
	if gridInputs {
		local = withoutInputFlags(local)
	}
	if local.HasAvailableFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, local)
	}
	if cmd.HasAvailableInheritedFlags() {
		w.Header(2, "Global Options")
		writeFlagsTable(w, cmd.InheritedFlags())
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}
	return w
}

// writeInputsTable lists the per-field flags with their built-in defaults.
func writeInputsTable(w *MarkdownWriter) {
	defaults := inputs.Defaults().Map()
	rows := make([][]string, 0, len(inputs.Fields))
	for _, f := range inputs.Fields {
		rows = append(rows, []string{
			InlineCode("--" + inputFlag(f.Key)),
			InlineCode(f.Key),
			f.Label,
			InlineCode(defaults[f.Key]),
		})
	}
	w.Table([]string{"Flag", "Key", "Field", "Default"}, rows)
}

func withoutInputFlags(flags *pflag.FlagSet) *pflag.FlagSet {
	out := pflag.NewFlagSet("options", pflag.ContinueOnError)
	flags.VisitAll(func(f *pflag.Flag) {
		if _, ok := inputs.Lookup(strings.ReplaceAll(f.Name, "-", "_")); !ok {
			out.AddFlag(f)
		}
	})
	return out
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			name = InlineCode("-"+f.Shorthand) + ", " + name
		}
		def := f.DefValue
		if def != "" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{name, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Default", "Description"}, rows)
}

// dedent strips the indentation shared by all non-blank lines.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, l := range lines {
		if len(l) >= indent && indent > 0 {
			lines[i] = l[indent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
