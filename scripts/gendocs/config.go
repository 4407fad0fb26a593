package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	sharedcfg "github.com/leapstack-labs/lensgrid/internal/config"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
)

// generateConfigDocs generates the lensgrid.yaml reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := generateConfigurationDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate configuration.md: %w", err)
	}
	log.Printf("  Generated configuration.md")

	return nil
}

// ConfigField represents a configuration key.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Section     string // "", "grid", "export", "serve"
}

// getConfigSchema returns the configuration keys. It mirrors the koanf tags
// in internal/cli/config and internal/config.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "state_path", Type: "string", Default: ".lensgrid/state.db", Description: "SQLite database holding saved inputs and export history"},
		{Name: "output", Type: "string", Default: "auto", Description: "Output format: auto, text, markdown, json"},
		{Name: "verbose", Type: "bool", Default: "false", Description: "Debug logging on stderr"},

		{Name: "max_points", Type: "int", Default: strconv.Itoa(sharedcfg.DefaultMaxPoints), Description: "Reject grids with more points than this (0 disables the limit)", Section: "grid"},
		{Name: "inclusive_axis", Type: "bool", Default: "false", Description: "Apply the SPH/CYL rounding tolerance to the axis bound too", Section: "grid"},

		{Name: "dir", Type: "string", Default: ".", Description: "Directory for exports without an explicit path", Section: "export"},
		{Name: "format", Type: "string", Default: sharedcfg.DefaultFormat, Description: "Default export format: xlsx, csv, json", Section: "export"},
		{Name: "sheet", Type: "string", Default: sharedcfg.DefaultSheet, Description: "Worksheet name for xlsx exports", Section: "export"},
		{Name: "file_pattern", Type: "string", Default: sharedcfg.DefaultFilePattern, Description: "Default file name; {time} expands to the export time", Section: "export"},

		{Name: "host", Type: "string", Default: sharedcfg.DefaultHost, Description: "Listen host for lensgrid serve", Section: "serve"},
		{Name: "port", Type: "int", Default: strconv.Itoa(sharedcfg.DefaultPort), Description: "Listen port for lensgrid serve", Section: "serve"},
	}
}

func fieldRows(fields []ConfigField, section string) [][]string {
	var rows [][]string
	for _, f := range fields {
		if f.Section != section {
			continue
		}
		rows = append(rows, []string{InlineCode(f.Name), f.Type, InlineCode(f.Default), f.Description})
	}
	return rows
}

// generateConfigurationDoc generates the configuration reference page.
func generateConfigurationDoc(outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Configuration", "lensgrid configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("lensgrid is configured via " + InlineCode("lensgrid.yaml") + " in your project root. " +
		"Values are layered: built-in defaults, then the config file, then " + InlineCode("LENSGRID_") +
		" environment variables, then command-line flags.")

	fields := getConfigSchema()
	headers := []string{"Key", "Type", "Default", "Description"}

	w.Header(2, "General")
	w.Table(headers, fieldRows(fields, ""))

	sections := []struct {
		key, title, intro string
	}{
		{"grid", "Grid", "Generator limits and bounds."},
		{"export", "Export", "Where and how grids are written."},
		{"serve", "Serve", "HTTP API settings."},
	}
	for _, s := range sections {
		w.Header(2, s.title)
		w.Paragraph(s.intro + " Keys live under " + InlineCode(s.key) + ".")
		w.Table(headers, fieldRows(fields, s.key))
	}

	w.Header(2, "Inputs")
	w.Paragraph("The " + InlineCode("inputs") + " section replaces the built-in first-run defaults. " +
		"Saved inputs in the state database take precedence once a grid has been generated.")

	defaults := inputs.Defaults().Map()
	var inputRows [][]string
	for _, f := range inputs.Fields {
		inputRows = append(inputRows, []string{InlineCode(f.Key), f.Label, InlineCode(defaults[f.Key])})
	}
	w.Table([]string{"Key", "Field", "Default"}, inputRows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `state_path: .lensgrid/state.db
output: auto

grid:
  max_points: 1000000

export:
  dir: exports
  format: xlsx
  file_pattern: lens-grid-{time}

serve:
  port: 8765

inputs:
  sph_max: "6"
  axis_step: "5"`)

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
