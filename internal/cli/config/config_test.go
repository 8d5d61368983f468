package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsort/internal/dataset"
	"github.com/leapstack-labs/leapsort/internal/synth"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "leapsort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "{}\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, ".leapsort", "state.db"), cfg.StatePath)
	assert.Equal(t, "dummy", cfg.Mode)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "error", cfg.OnCollision)
	assert.Equal(t, "auto", cfg.OutputFormat)

	assert.Equal(t, "dataset_dummy", cfg.Dummy.Name)
	assert.Equal(t, filepath.Join(dir, "data", "reorder_dummy_dataset_in"), cfg.Dummy.InputDir)
	assert.Equal(t, 5, cfg.Dummy.Folders)
	assert.Equal(t, 500, cfg.Dummy.FilesPerFolder)
	assert.Equal(t, 5000, cfg.Dummy.FileSize)
	assert.Equal(t, synth.DefaultWeights(), cfg.Dummy.Labels)

	require.Len(t, cfg.Datasets, 2)
	train := cfg.Datasets[0]
	assert.Equal(t, "dataset_train", train.Name)
	assert.Equal(t, filepath.Join(dir, "data", "data_entrainement_final.csv"), train.Table)
	assert.Equal(t, ";", train.Delimiter)
	assert.Equal(t, map[string]string{"Type de document[multi_tags]": "label"}, train.Columns)
	valid := cfg.Datasets[1]
	assert.Equal(t, "dataset_valid", valid.Name)
	assert.Equal(t, ",", valid.Delimiter)
	assert.Equal(t, map[string]string{"type de document[tag]": "label"}, valid.Columns)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `data_dir: /srv/images
workers: 4
on_collision: warn
dummy:
  seed: 42
  labels:
    - label: cat
      weight: 0.5
    - label: dog
      weight: 0.5
datasets:
  - name: scans
    table: scans.tsv
    delimiter: "\t"
    columns:
      file: path
      class: label
    label_separator: "|"
    base_dir: raw
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/images", cfg.DataDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "warn", cfg.OnCollision)
	assert.Equal(t, uint64(42), cfg.Dummy.Seed)
	assert.Equal(t, 500, cfg.Dummy.FilesPerFolder, "unset dummy keys keep defaults")
	assert.Equal(t, []synth.LabelWeight{{Label: "cat", Weight: 0.5}, {Label: "dog", Weight: 0.5}}, cfg.Dummy.Labels)

	require.Len(t, cfg.Datasets, 1, "a configured list replaces the defaults")
	scans, ok := cfg.FindDataset("scans")
	require.True(t, ok)
	assert.Equal(t, "/srv/images/scans.tsv", scans.Table)
	assert.Equal(t, "\t", scans.Delimiter)
	assert.Equal(t, "/srv/images/raw", scans.BaseDir)
	assert.Equal(t, "|", scans.LabelSeparator)
	assert.Equal(t, "/srv/images/scans", cfg.DatasetRoot("scans"))

	src := scans.Source()
	assert.Equal(t, scans.Table, src.Path)
	assert.Equal(t, map[string]string{"file": "path", "class": "label"}, src.Columns)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "workers: 2\nmode: dummy\n")

	t.Setenv("LEAPSORT_WORKERS", "3")
	t.Setenv("LEAPSORT_MODE", "real")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.String("mode", "", "")
	require.NoError(t, flags.Set("workers", "8"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers, "flag value should override config file and env var")
	assert.Equal(t, "real", cfg.Mode, "unset flag falls back to env var")
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "on_collision: warn\n")

	t.Setenv("LEAPSORT_ON_COLLISION", "overwrite")
	t.Setenv("LEAPSORT_DUMMY__FOLDERS", "2")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "overwrite", cfg.OnCollision)
	assert.Equal(t, 2, cfg.Dummy.Folders)
}

func TestLoadConfig_PathFlagsResolveAgainstCWD(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "{}\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-dir", "", "")
	flags.String("state", "", "")
	require.NoError(t, flags.Set("data-dir", "elsewhere"))
	require.NoError(t, flags.Set("state", "runs.db"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "elsewhere"), cfg.DataDir)
	assert.Equal(t, filepath.Join(cwd, "runs.db"), cfg.StatePath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown mode", "mode: fast\n"},
		{"unknown collision policy", "on_collision: ignore\n"},
		{"negative workers", "workers: -1\n"},
		{"unknown output", "output: yaml\n"},
		{"weights do not sum to one", "dummy:\n  labels:\n    - label: a\n      weight: 0.4\n"},
		{"dataset without table", "datasets:\n  - name: x\n"},
		{"duplicate dataset", "datasets:\n  - name: x\n    table: a.csv\n  - name: x\n    table: b.csv\n"},
		{"nested dataset name", "datasets:\n  - name: a/b\n    table: a.csv\n"},
		{"dummy input inside dataset root", "dummy:\n  input_dir: dataset_dummy/in\n"},
		{"long delimiter", "datasets:\n  - name: x\n    table: a.csv\n    delimiter: ';;'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			cfgPath := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(cfgPath, nil)
			assert.ErrorIs(t, err, dataset.ErrConfig)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestFindProjectRootUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "{}\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Equal(t, root, findProjectRootUpward(nested))
	assert.Empty(t, findProjectRootUpward(t.TempDir()))
}

func TestValidateTables(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.csv")
	require.NoError(t, os.WriteFile(present, []byte("path,label\n"), 0o600))

	cfg := Default()
	cfg.Datasets = []DatasetConfig{
		{Name: "ok", Table: present},
		{Name: "gone", Table: filepath.Join(dir, "gone.csv")},
	}

	assert.NoError(t, cfg.ValidateTables("ok"))
	assert.ErrorIs(t, cfg.ValidateTables(), dataset.ErrInputMissing)
	assert.ErrorIs(t, cfg.ValidateTables("gone"), dataset.ErrInputMissing)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()), "falls back to a discard logger")

	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestEnvAndFlagKeys(t *testing.T) {
	assert.Equal(t, "data_dir", envKey("LEAPSORT_DATA_DIR"))
	assert.Equal(t, "dummy.seed", envKey("LEAPSORT_DUMMY__SEED"))
	assert.Equal(t, "state_path", flagKey("state"))
	assert.Equal(t, "on_collision", flagKey("on-collision"))
}
