package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lensgrid/internal/cli/config"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string) // setup before running
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:    "init empty directory",
			args:    []string{},
			wantErr: false,
			wantFiles: []string{
				"lensgrid.yaml",
				"inputs.yaml",
				".gitignore",
			},
		},
		{
			name:      "init new subdirectory",
			args:      []string{"lenses"},
			wantFiles: []string{"lenses/lensgrid.yaml", "lenses/inputs.yaml"},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "lensgrid.yaml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing yml config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "lensgrid.yml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "lensgrid.yaml"), []byte("existing"), 0600)
			},
			args:    []string{"--force"},
			wantErr: false,
			wantFiles: []string{
				"lensgrid.yaml",
				"inputs.yaml",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create temp directory and change to it
			tmpDir := t.TempDir()
			oldWd, _ := os.Getwd()
			require.NoError(t, os.Chdir(tmpDir))
			defer func() { _ = os.Chdir(oldWd) }()

			// Run setup if provided
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			// Check expected files exist
			for _, f := range tt.wantFiles {
				path := filepath.Join(tmpDir, f)
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "expected file/dir %q to exist", f)
			}
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}

func TestInitCreatesValidConfig(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.NoError(t, err)

	// The generated config loads and matches the built-in defaults.
	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "lensgrid.yaml"), config.GetConfigFileUsed())
	assert.Equal(t, 1_000_000, cfg.Grid.MaxPoints)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	assert.Equal(t, 8765, cfg.Serve.Port)
	assert.Equal(t, filepath.Join(tmpDir, ".lensgrid", "state.db"), cfg.StatePath)

	// The generated inputs file holds the default inputs.
	data, err := inputs.LoadFile("inputs.yaml")
	require.NoError(t, err)
	form := inputs.Form{}
	require.NoError(t, form.Apply(data))
	assert.Equal(t, inputs.Defaults().Map(), form.Map())
}

func TestInitSkipsExistingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "inputs.yaml"), []byte("sph_max: 9\n"), 0600))

	cmd := NewInitCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{tmpDir})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(tmpDir, "inputs.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sph_max: 9\n", string(data))
	assert.Contains(t, buf.String(), "inputs.yaml")
}
