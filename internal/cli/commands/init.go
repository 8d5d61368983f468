package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsort/internal/cli/config"
	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/loader"
)

// configFileName is the file written by init.
const configFileName = "leapsort.yaml"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapsort project",
		Long: `Initialize a new leapsort project with a data directory and configuration.

This creates:
  - data/ directory for metadata tables and dataset output
  - leapsort.yaml configuration file with every default spelled out
  - .gitignore excluding the state database and built datasets

Use --example to create a small working project with a metadata table and the
files it references, ready for 'leapsort build --mode real'.`,
		Example: `  # Initialize in current directory
  leapsort init

  # Initialize with a working example
  leapsort init --example

  # Initialize in a new directory
  leapsort init my-project --example

  # Force overwrite existing config
  leapsort init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			return runInit(r, dir, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example project with a metadata table and source files")

	return cmd
}

// exampleConfig is the configuration of the --example project.
func exampleConfig() *config.Config {
	cfg := config.Default()
	cfg.Mode = "real"
	cfg.Datasets = []config.DatasetConfig{
		{
			Name:      "documents",
			Table:     "documents.csv",
			Delimiter: ";",
			Columns:   map[string]string{"file": loader.PathColumn, "class": loader.LabelColumn},
		},
	}
	return cfg
}

func runInit(r *output.Renderer, dir string, force, example bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configFileName)
	}

	templateName := "minimal"
	cfg := config.Default()
	if example {
		templateName = "example"
		cfg = exampleConfig()
	}

	if err := copyTemplate(templateName, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	if err := writeConfigFile(configPath, cfg); err != nil {
		return err
	}

	files, _ := listTemplateFiles(templateName)
	r.Success(configFileName)
	for _, f := range files {
		r.Success(f)
	}

	r.Println("")
	r.Success("leapsort project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if example {
		r.Println("  1. Run 'leapsort doctor' to check the example dataset")
		r.Println("  2. Run 'leapsort build' to copy it into data/documents/<label>/")
		r.Println("  3. Run 'leapsort runs' to see the recorded build")
		return nil
	}
	r.Println("  1. Run 'leapsort build' to try the synthetic dataset")
	r.Println("  2. Put your metadata tables in data/ and list them under datasets in leapsort.yaml")
	r.Println("  3. Run 'leapsort doctor' before 'leapsort build --mode real'")
	return nil
}
