// Package adapter provides the embedded database used to read metadata tables.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for opening a database.
type Config struct {
	// Path is the database file. Empty or ":memory:" selects an in-memory database.
	Path string
}

// Column represents a column in a loaded table.
type Column struct {
	Name     string
	Type     string
	Position int
}

// Metadata holds metadata about a loaded table.
type Metadata struct {
	Name     string
	Columns  []Column
	RowCount int64
}

// ColumnNames returns the column names in ordinal order.
func (m *Metadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// CSVOptions controls how a delimited file is read.
type CSVOptions struct {
	// Delimiter separates fields. Empty lets the reader sniff it.
	Delimiter string
	// AllVarchar disables type inference so every cell is read as text.
	AllVarchar bool
}

// Rows wraps sql.Rows.
type Rows struct {
	*sql.Rows
}

// Adapter loads delimited files into tables and queries them.
type Adapter interface {
	// Connect opens the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// GetTableMetadata retrieves the columns and row count of a table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV replaces table with the contents of a delimited file.
	LoadCSV(ctx context.Context, table string, filePath string, opts CSVOptions) error
}
