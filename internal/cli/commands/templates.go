package commands

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapsort/internal/cli/config"
)

//go:embed all:templates
var templateFS embed.FS

// configHeader is written above the generated leapsort.yaml.
const configHeader = `# leapsort configuration.
# Relative paths resolve against this file's directory; table, input_dir and
# base_dir resolve against data_dir. Every key can be overridden with a
# LEAPSORT_ environment variable (LEAPSORT_DUMMY__SEED sets dummy.seed).
`

// copyTemplate copies an embedded template directory to the target path.
// It handles special file renames (e.g., "gitignore" -> ".gitignore").
func copyTemplate(templateName, targetDir string, force bool) error {
	root := filepath.Join("templates", templateName)

	return fs.WalkDir(templateFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Calculate relative path from template root
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		// Skip root directory
		if relPath == "." {
			return nil
		}

		targetPath := filepath.Join(targetDir, renameSpecialFiles(relPath))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0o750)
		}

		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil // Skip existing files
			}
		}

		content, err := templateFS.ReadFile(path)
		if err != nil {
			return err
		}

		return os.WriteFile(targetPath, content, 0o600)
	})
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(path string) string {
	base := filepath.Base(path)
	dir := filepath.Dir(path)

	switch base {
	case "gitignore":
		return filepath.Join(dir, ".gitignore")
	case "gitkeep":
		return filepath.Join(dir, ".gitkeep")
	default:
		return path
	}
}

// listTemplateFiles returns all files in a template for display purposes.
func listTemplateFiles(templateName string) ([]string, error) {
	var files []string
	root := filepath.Join("templates", templateName)

	err := fs.WalkDir(templateFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relPath, _ := filepath.Rel(root, path)
			files = append(files, renameSpecialFiles(relPath))
		}
		return nil
	})

	return files, err
}

// writeConfigFile renders cfg as YAML into path.
func writeConfigFile(path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	content := append([]byte(configHeader), data...)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
