// Package config provides configuration management for the leapsort CLI.
//
// Settings are layered with koanf: built-in defaults, then leapsort.yaml, then
// LEAPSORT_ environment variables, then explicitly set flags.
package config

import (
	"path/filepath"

	"github.com/leapstack-labs/leapsort/internal/loader"
	"github.com/leapstack-labs/leapsort/internal/synth"
)

// Config holds all CLI configuration options.
type Config struct {
	DataDir      string          `koanf:"data_dir" yaml:"data_dir"`
	StatePath    string          `koanf:"state_path" yaml:"state_path"`
	Mode         string          `koanf:"mode" yaml:"mode"`
	Workers      int             `koanf:"workers" yaml:"workers"`
	OnCollision  string          `koanf:"on_collision" yaml:"on_collision"`
	Verbose      bool            `koanf:"verbose" yaml:"verbose,omitempty"`
	OutputFormat string          `koanf:"output" yaml:"output"`
	Dummy        DummyConfig     `koanf:"dummy" yaml:"dummy"`
	Datasets     []DatasetConfig `koanf:"datasets" yaml:"datasets"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-" yaml:"-"`
}

// DummyConfig controls the synthetic input generator.
type DummyConfig struct {
	Name           string              `koanf:"name" yaml:"name"`
	InputDir       string              `koanf:"input_dir" yaml:"input_dir"`
	Folders        int                 `koanf:"folders" yaml:"folders"`
	FilesPerFolder int                 `koanf:"files_per_folder" yaml:"files_per_folder"`
	FileSize       int                 `koanf:"file_size" yaml:"file_size"`
	Seed           uint64              `koanf:"seed" yaml:"seed,omitempty"`
	Labels         []synth.LabelWeight `koanf:"labels" yaml:"labels"`
}

// DatasetConfig describes one dataset built from a metadata table in real mode.
type DatasetConfig struct {
	Name           string            `koanf:"name" yaml:"name"`
	Table          string            `koanf:"table" yaml:"table"`
	Delimiter      string            `koanf:"delimiter" yaml:"delimiter"`
	Columns        map[string]string `koanf:"columns" yaml:"columns,omitempty"`
	LabelSeparator string            `koanf:"label_separator" yaml:"label_separator,omitempty"`
	BaseDir        string            `koanf:"base_dir" yaml:"base_dir,omitempty"`
}

// Default configuration values.
const (
	DefaultDataDir     = "data"
	DefaultStateFile   = ".leapsort/state.db"
	DefaultMode        = "dummy"
	DefaultWorkers     = 1
	DefaultOnCollision = "error"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultDummyName   = "dataset_dummy"
	DefaultDummyInput  = "reorder_dummy_dataset_in"
)

// DefaultDatasets returns the real-mode datasets used when none are configured.
func DefaultDatasets() []DatasetConfig {
	return []DatasetConfig{
		{
			Name:      "dataset_train",
			Table:     "data_entrainement_final.csv",
			Delimiter: ";",
			Columns:   map[string]string{"Type de document[multi_tags]": loader.LabelColumn},
		},
		{
			Name:      "dataset_valid",
			Table:     "data_test_final.csv",
			Delimiter: ",",
			Columns:   map[string]string{"type de document[tag]": loader.LabelColumn},
		},
	}
}

// Default returns a Config holding every default value.
func Default() *Config {
	return &Config{
		DataDir:      DefaultDataDir,
		StatePath:    DefaultStateFile,
		Mode:         DefaultMode,
		Workers:      DefaultWorkers,
		OnCollision:  DefaultOnCollision,
		OutputFormat: DefaultOutput,
		Dummy: DummyConfig{
			Name:           DefaultDummyName,
			InputDir:       DefaultDummyInput,
			Folders:        synth.DefaultFolders,
			FilesPerFolder: synth.DefaultFilesPerFolder,
			FileSize:       synth.DefaultFileSize,
			Labels:         synth.DefaultWeights(),
		},
		Datasets: DefaultDatasets(),
	}
}

// DatasetRoot returns the output directory of a dataset.
func (c *Config) DatasetRoot(name string) string {
	return filepath.Join(c.DataDir, name)
}

// FindDataset returns the dataset with the given name.
func (c *Config) FindDataset(name string) (DatasetConfig, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetConfig{}, false
}

// DatasetNames lists configured dataset names in order.
func (c *Config) DatasetNames() []string {
	names := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		names[i] = d.Name
	}
	return names
}

// Source converts the dataset settings into a loader source.
func (d DatasetConfig) Source() loader.Source {
	return loader.Source{
		Path:           d.Table,
		Delimiter:      d.Delimiter,
		Columns:        d.Columns,
		LabelSeparator: d.LabelSeparator,
		BaseDir:        d.BaseDir,
	}
}

// Synth converts the dummy settings into a generator config.
func (d DummyConfig) Synth() synth.Config {
	return synth.Config{
		InputDir:       d.InputDir,
		Folders:        d.Folders,
		FilesPerFolder: d.FilesPerFolder,
		FileSize:       d.FileSize,
		Weights:        d.Labels,
		Seed:           d.Seed,
	}
}
