package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/lensgrid/internal/cli/config"
	"github.com/leapstack-labs/lensgrid/internal/cli/output"
	"github.com/leapstack-labs/lensgrid/internal/cli/testutil"
	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
	sharedtestutil "github.com/leapstack-labs/lensgrid/internal/testutil"
)

func TestOutputTarget(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 9, 0, time.UTC)
	cfg := &config.ExportConfig{Dir: "out", Format: "xlsx", Sheet: "Sheet1", FilePattern: "lens-grid-{time}"}

	tests := []struct {
		name       string
		file       string
		formatFlag string
		wantPath   string
		wantFormat export.Format
		wantErr    bool
	}{
		{
			name:       "default name",
			wantPath:   filepath.Join("out", "lens-grid-20240305-143009.xlsx"),
			wantFormat: export.FormatXLSX,
		},
		{
			name:       "default name with format flag",
			formatFlag: "csv",
			wantPath:   filepath.Join("out", "lens-grid-20240305-143009.csv"),
			wantFormat: export.FormatCSV,
		},
		{
			name:       "format from extension",
			file:       "grid.json",
			wantPath:   "grid.json",
			wantFormat: export.FormatJSON,
		},
		{
			name:       "flag wins over extension",
			file:       "grid.txt",
			formatFlag: "csv",
			wantPath:   "grid.txt",
			wantFormat: export.FormatCSV,
		},
		{
			name:       "missing extension is added",
			file:       "grid",
			wantPath:   "grid.xlsx",
			wantFormat: export.FormatXLSX,
		},
		{
			name:       "unknown extension uses config format",
			file:       "grid.dat",
			wantPath:   "grid.dat",
			wantFormat: export.FormatXLSX,
		},
		{
			name:       "unknown format flag",
			formatFlag: "pdf",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, format, err := outputTarget(cfg, tt.file, tt.formatFlag, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, export.ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantFormat, format)
		})
	}
}

func TestGenerateCommand_XLSX(t *testing.T) {
	dir := setupProject(t, "")

	out, err := execute(t, NewGenerateCommand(), "grid.xlsx", "--axis-step", "90")
	require.NoError(t, err)

	var res GenerateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	// Axis 10, 100: the bare bound excludes 190.
	assert.Equal(t, 9*6*2, res.Rows)
	assert.True(t, res.Saved)

	f, err := excelize.OpenFile(filepath.Join(dir, "grid.xlsx"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 109)
	assert.Equal(t, []string{"SPH", "CYL", "Axis"}, rows[0])
	assert.Equal(t, []string{"0", "0.25", "10"}, rows[1])
	assert.Equal(t, []string{"2", "2.75", "100"}, rows[108])

	store := openProjectStore(t)
	exports, err := store.ListExports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, filepath.Join(dir, "grid.xlsx"), exports[0].Path)
	assert.Equal(t, "90", exports[0].Inputs["axis_step"])
}

func TestGenerateCommand_DefaultNameUsesExportDir(t *testing.T) {
	dir := setupProject(t, `
export:
  dir: exports
  format: csv
  file_pattern: lenses
`)

	out, err := execute(t, NewGenerateCommand())
	require.NoError(t, err)

	var res GenerateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, filepath.Join(dir, "exports", "lenses.csv"), res.Path)
	assert.FileExists(t, res.Path)
}

func TestGenerateCommand_NoSave(t *testing.T) {
	dir := setupProject(t, "")

	out, err := execute(t, NewGenerateCommand(), "grid.csv", "--no-save", "--sph-max", "0.5")
	require.NoError(t, err)

	var res GenerateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Saved)
	assert.Empty(t, res.ExportID)
	assert.Equal(t, 3*6*18, res.Rows)

	store := openProjectStore(t)
	stored, err := store.LoadInputs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
	exports, err := store.ListExports(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, exports)
	assert.FileExists(t, filepath.Join(dir, "grid.csv"))
}

func TestGenerateCommand_InputFile(t *testing.T) {
	dir := setupProject(t, "")
	inputsPath := filepath.Join(dir, "inputs.json")
	require.NoError(t, os.WriteFile(inputsPath, []byte(`{"sph_max": 0, "cyl_max": 0.25, "axis_step": 85, "axis_max": "95"}`), 0600))

	// Per-field flags win over the file.
	out, err := execute(t, NewGenerateCommand(), "grid.csv", "--input", inputsPath, "--axis-max", "180")
	require.NoError(t, err)

	var res GenerateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1*1*3, res.Rows)

	data, err := os.ReadFile(filepath.Join(dir, "grid.csv"))
	require.NoError(t, err)
	assert.Equal(t, "SPH,CYL,Axis\n0,0.25,10\n0,0.25,95\n0,0.25,180\n", string(data))
}

func TestGenerateCommand_InvalidInputs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"non-numeric", []string{"--sph-start", "abc"}, "is not a number"},
		{"zero step", []string{"--cyl-step", "0"}, "step must be greater than zero"},
		{"negative step", []string{"--axis-step", "-5"}, "step must be greater than zero"},
		{"unknown format", []string{"--format", "ods"}, "unknown export format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupProject(t, "")

			args := append([]string{"grid.csv"}, tt.args...)
			_, err := execute(t, NewGenerateCommand(), args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			_, statErr := os.Stat(filepath.Join(dir, "grid.csv"))
			assert.True(t, os.IsNotExist(statErr), "no file should be written")

			store := openProjectStore(t)
			stored, err := store.LoadInputs(context.Background())
			require.NoError(t, err)
			assert.Empty(t, stored, "invalid inputs must not be saved")
		})
	}
}

func TestPreviewCommand(t *testing.T) {
	setupProject(t, "")

	out, err := execute(t, NewPreviewCommand(), "--limit", "3")
	require.NoError(t, err)

	var res PreviewOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Points, 3)
	assert.Equal(t, 972, res.Counts.Total)
	assert.InDelta(t, 30.0, res.Points[2].Axis, 1e-9)
	assert.Equal(t, 0.25, res.Points[2].CYL)
}

func TestPreviewCommand_Markdown(t *testing.T) {
	setupProject(t, "")
	t.Setenv("LENSGRID_OUTPUT", "markdown")
	_, err := config.LoadConfig("", nil)
	require.NoError(t, err)

	out, err := execute(t, NewPreviewCommand(), "--limit", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "# Grid Preview")
	assert.Contains(t, out, "| SPH | CYL | Axis |")
	assert.Contains(t, out, "Showing 2 of 972 points")
	assert.False(t, strings.Contains(out, "\x1b["), "markdown output must not contain escapes")
}

func TestPreviewCommand_NegativeLimit(t *testing.T) {
	setupProject(t, "")

	_, err := execute(t, NewPreviewCommand(), "--limit", "-1")
	require.Error(t, err)
}

func TestCountCommand(t *testing.T) {
	setupProject(t, "")

	out, err := execute(t, NewCountCommand(), "--sph-step", "0.5")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sph":5,"cyl":6,"axis":18,"total":540}`, out)
}

func TestCountCommand_ConfigInputs(t *testing.T) {
	setupProject(t, `
inputs:
  axis_step: "45"
`)

	out, err := execute(t, NewCountCommand())
	require.NoError(t, err)
	// 10, 55, 100, 145
	assert.JSONEq(t, `{"sph":9,"cyl":6,"axis":4,"total":216}`, out)
}

// recordFailingStore persists inputs but cannot record exports.
type recordFailingStore struct{ *state.SQLiteStore }

func (recordFailingStore) RecordExport(context.Context, *state.Export) error {
	return assert.AnError
}

func (recordFailingStore) SaveExport(context.Context, map[string]string, *state.Export) error {
	return assert.AnError
}

func TestExportGrid_FailedRecordStoresNothing(t *testing.T) {
	dir := setupProject(t, "")
	store := openProjectStore(t)

	tr := testutil.NewTestRendererJSON()
	cmdCtx := &CommandContext{
		Cfg:      config.GetCurrentConfig(),
		Logger:   sharedtestutil.NewTestLogger(t),
		Store:    recordFailingStore{store},
		Renderer: tr.Renderer,
	}

	path := filepath.Join(dir, "grid.csv")
	_, err := exportGrid(context.Background(), cmdCtx, inputs.Defaults(), path, export.FormatCSV, true)
	require.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "failed to save it")
	assert.FileExists(t, path, "the export itself succeeded")

	stored, err := store.LoadInputs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored, "inputs must not be saved without the export record")

	exports, err := store.ListExports(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, exports)
	assert.Empty(t, tr.Output())
}

func TestRenderExport(t *testing.T) {
	res := &export.Result{
		Format: export.FormatXLSX,
		Path:   "grid.xlsx",
		Rows:   972,
		Counts: grid.Counts{SPH: 9, CYL: 6, Axis: 18, Total: 972},
	}

	tests := []struct {
		name     string
		renderer *testutil.TestRenderer
		mode     output.OutputMode
		saved    bool
		want     []string
	}{
		{
			name:     "auto without terminal is markdown",
			renderer: testutil.NewTestRendererAuto(),
			mode:     output.ModeMarkdown,
			saved:    true,
			want:     []string{"**Exported 972 points to grid.xlsx**", "- **Format:** xlsx", "- **Axis values:** 18"},
		},
		{
			name:     "markdown not saved",
			renderer: testutil.NewTestRendererMarkdown(),
			mode:     output.ModeMarkdown,
			want:     []string{"- **SPH values:** 9"},
		},
		{
			name:     "text",
			renderer: testutil.NewTestRenderer(output.ModeText, false),
			mode:     output.ModeText,
			saved:    true,
			want:     []string{"Exported 972 points to grid.xlsx", "CYL values:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.renderer
			renderExport(tr.Renderer, &GenerateOutput{Result: res, Saved: tt.saved})

			for _, want := range tt.want {
				testutil.AssertContains(t, tr.Output(), want)
			}
			testutil.AssertOutputMode(t, tr, tt.mode)
			if tt.saved {
				testutil.AssertNotContains(t, tr.ErrorOutput(), "not saved")
			} else {
				testutil.AssertContains(t, tr.ErrorOutput(), "> **Warning:** Inputs not saved (--no-save)")
			}

			tr.Reset()
			assert.Empty(t, tr.Output())
		})
	}
}
