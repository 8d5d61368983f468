package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsort/internal/cli/config"
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
				"leapsort.yaml",
				".gitignore",
				"data",
				"data/.gitkeep",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapsort.yaml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapsort.yaml"), []byte("existing"), 0600)
			},
			args:    []string{"--force"},
			wantErr: false,
			wantFiles: []string{
				"leapsort.yaml",
				"data",
			},
		},
		{
			name:    "init example project",
			args:    []string{"--example"},
			wantErr: false,
			wantFiles: []string{
				"leapsort.yaml",
				"data/documents.csv",
				"data/raw/batch1/scan_001.txt",
				"data/raw/batch2/scan_006.txt",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			// Run setup if provided
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append([]string{tmpDir}, tt.args...))

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			// Check expected files exist
			for _, f := range tt.wantFiles {
				path := filepath.Join(tmpDir, filepath.FromSlash(f))
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
	assert.NotNil(t, cmd.Flags().Lookup("example"), "--example flag should exist")
}

func TestInitCreatesValidConfig(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{tmpDir})
	require.NoError(t, cmd.Execute())

	// Read and verify config content
	content, err := os.ReadFile(filepath.Join(tmpDir, "leapsort.yaml"))
	require.NoError(t, err, "failed to read leapsort.yaml")

	expectedContents := []string{
		"data_dir: data",
		"state_path: .leapsort/state.db",
		"mode: dummy",
		"on_collision: error",
		"files_per_folder: 500",
	}
	for _, expected := range expectedContents {
		assert.Contains(t, string(content), expected, "config should contain %q", expected)
	}

	// The written file loads back to the defaults
	t.Cleanup(config.ResetConfig)
	cfg, err := config.LoadConfig(filepath.Join(tmpDir, "leapsort.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "data"), cfg.DataDir)
	assert.Equal(t, config.DefaultMode, cfg.Mode)
	assert.Len(t, cfg.Dummy.Labels, 4)
	assert.Equal(t, []string{"dataset_train", "dataset_valid"}, cfg.DatasetNames())
}

func TestInitExampleConfigLoads(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{tmpDir, "--example"})
	require.NoError(t, cmd.Execute())

	t.Cleanup(config.ResetConfig)
	cfg, err := config.LoadConfig(filepath.Join(tmpDir, "leapsort.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "real", cfg.Mode)
	ds, ok := cfg.FindDataset("documents")
	require.True(t, ok)
	assert.Equal(t, ";", ds.Delimiter)
	assert.FileExists(t, ds.Table)
	assert.NoError(t, cfg.ValidateTables())
}
