package state

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// provider returns a goose provider bound to the store's connection.
func (s *SQLiteStore) provider() (*goose.Provider, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies every pending migration.
func (s *SQLiteStore) Migrate() error {
	p, err := s.provider()
	if err != nil {
		return err
	}

	results, err := p.Up(context.Background())
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Debug("applied migration",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration", r.Duration)
	}
	return nil
}

// GetMigrationVersion returns the version of the last applied migration.
func (s *SQLiteStore) GetMigrationVersion() (int64, error) {
	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(context.Background())
}
