package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsort/internal/cli/config"
	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Store    state.Store
}

// NewCommandContext creates a CommandContext with an open run history store.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cctx := NewCommandContextWithoutStore(cmd)

	store, err := openStore(cctx.Cfg, cctx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cctx.Store = store

	cleanup := func() {
		_ = store.Close()
	}
	return cctx, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for commands that never touch run history.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults resolved
// against the working directory when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return config.Default()
	}
	return cfg
}

func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
