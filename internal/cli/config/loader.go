package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "LEAPSORT_"

// ConfigFileNames are the file names searched for, in order.
var ConfigFileNames = []string{"leapsort.yaml", "leapsort.yml"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configIn returns the config file in dir, or "" if there is none.
func configIn(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a leapsort config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configIn(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot returns the directory of an explicit config file, else the
// nearest ancestor of the CWD holding a config file, else the CWD.
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(cfgFile)
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// defaultsMap mirrors Default() in the shape koanf unmarshals from.
func defaultsMap() map[string]any {
	d := Default()

	labels := make([]any, len(d.Dummy.Labels))
	for i, l := range d.Dummy.Labels {
		labels[i] = map[string]any{"label": l.Label, "weight": l.Weight}
	}

	datasets := make([]any, len(d.Datasets))
	for i, ds := range d.Datasets {
		columns := make(map[string]any, len(ds.Columns))
		for raw, canonical := range ds.Columns {
			columns[raw] = canonical
		}
		datasets[i] = map[string]any{
			"name":      ds.Name,
			"table":     ds.Table,
			"delimiter": ds.Delimiter,
			"columns":   columns,
		}
	}

	return map[string]any{
		"data_dir":     d.DataDir,
		"state_path":   d.StatePath,
		"mode":         d.Mode,
		"workers":      d.Workers,
		"on_collision": d.OnCollision,
		"verbose":      false,
		"output":       d.OutputFormat,
		"dummy": map[string]any{
			"name":             d.Dummy.Name,
			"input_dir":        d.Dummy.InputDir,
			"folders":          d.Dummy.Folders,
			"files_per_folder": d.Dummy.FilesPerFolder,
			"file_size":        d.Dummy.FileSize,
			"labels":           labels,
		},
		"datasets": datasets,
	}
}

// envKey maps LEAPSORT_DATA_DIR to data_dir and LEAPSORT_DUMMY__SEED to dummy.seed.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// flagKey maps a changed flag to its config key.
func flagKey(name string) string {
	key := strings.ReplaceAll(name, "-", "_")
	// --state is short for the state_path key
	if key == "state" {
		return "state_path"
	}
	return key
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Relative paths from flags resolve against the CWD; all others resolve
// against the project root.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile)

	// Paths given on the command line are relative to where the user stands.
	var flagDataDir, flagStatePath string
	if flags != nil {
		if f := flags.Lookup("data-dir"); f != nil && f.Changed && f.Value.String() != "" {
			flagDataDir, _ = filepath.Abs(f.Value.String())
		}
		if f := flags.Lookup("state"); f != nil && f.Changed && f.Value.String() != "" {
			flagStatePath, _ = filepath.Abs(f.Value.String())
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Load config file
	configFileUsed = cfgFile
	if configFileUsed == "" {
		configFileUsed = configIn(projectRoot)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (LEAPSORT_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths
	cfg.ProjectRoot = projectRoot
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	} else {
		cfg.DataDir = resolvePathRelativeTo(cfg.DataDir, projectRoot)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else if cfg.StatePath != ":memory:" {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	cfg.Dummy.InputDir = resolvePathRelativeTo(cfg.Dummy.InputDir, cfg.DataDir)
	for i := range cfg.Datasets {
		ds := &cfg.Datasets[i]
		ds.Table = resolvePathRelativeTo(ds.Table, cfg.DataDir)
		ds.BaseDir = resolvePathRelativeTo(ds.BaseDir, cfg.DataDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}
