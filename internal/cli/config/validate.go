package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/dataset"
	"github.com/leapstack-labs/leapsort/internal/synth"
)

// Validate checks if the configuration is valid. Every error wraps
// dataset.ErrConfig.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", dataset.ErrConfig)
	}
	if _, err := dataset.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := dataset.ParseCollisionPolicy(c.OnCollision); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", dataset.ErrConfig, c.Workers)
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return fmt.Errorf("%w: %w", dataset.ErrConfig, err)
	}

	if err := validateDatasetName(c.Dummy.Name); err != nil {
		return fmt.Errorf("dummy: %w", err)
	}
	if c.Dummy.Folders < 0 || c.Dummy.FilesPerFolder < 0 || c.Dummy.FileSize < 0 {
		return fmt.Errorf("%w: dummy folders, files_per_folder and file_size must not be negative", dataset.ErrConfig)
	}
	if err := synth.ValidateWeights(c.Dummy.Labels); err != nil {
		return fmt.Errorf("dummy labels: %w", err)
	}
	if root := c.DatasetRoot(c.Dummy.Name); isWithin(c.Dummy.InputDir, root) {
		return fmt.Errorf("%w: dummy input_dir %s lies inside the dataset root %s, which is wiped on every build",
			dataset.ErrConfig, c.Dummy.InputDir, root)
	}

	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		if err := validateDatasetName(d.Name); err != nil {
			return fmt.Errorf("datasets[%d]: %w", i, err)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: dataset %q is configured twice", dataset.ErrConfig, d.Name)
		}
		seen[d.Name] = true
		if d.Table == "" {
			return fmt.Errorf("%w: dataset %q has no table", dataset.ErrConfig, d.Name)
		}
		if d.Delimiter != "" && utf8.RuneCountInString(d.Delimiter) != 1 {
			return fmt.Errorf("%w: dataset %q delimiter %q must be a single character", dataset.ErrConfig, d.Name, d.Delimiter)
		}
	}

	return nil
}

// validateDatasetName checks a dataset name is usable as a directory below data_dir.
func validateDatasetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name is required", dataset.ErrConfig)
	}
	if err := dataset.ValidateLabel(name); err != nil {
		return fmt.Errorf("%w: dataset name %q must be a single path element", dataset.ErrConfig, name)
	}
	return nil
}

// isWithin reports whether path equals root or lies below it.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ValidateTables checks the metadata tables of the given datasets exist.
func (c *Config) ValidateTables(names ...string) error {
	for _, d := range c.Datasets {
		if len(names) > 0 && !slices.Contains(names, d.Name) {
			continue
		}
		if _, err := os.Stat(d.Table); os.IsNotExist(err) {
			return fmt.Errorf("%w: metadata table for %s does not exist: %s\nHint: set datasets[].table in leapsort.yaml or use --data-dir",
				dataset.ErrInputMissing, d.Name, d.Table)
		}
	}
	return nil
}
