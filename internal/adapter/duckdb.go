package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DuckDBAdapter implements the Adapter interface for DuckDB.
type DuckDBAdapter struct {
	db     *sql.DB
	config Config
}

// NewDuckDBAdapter creates a new DuckDB adapter instance.
func NewDuckDBAdapter() *DuckDBAdapter {
	return &DuckDBAdapter{}
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" or an empty path for an in-memory database.
func (a *DuckDBAdapter) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.db = db
	a.config = cfg

	return nil
}

// Close closes the DuckDB connection.
func (a *DuckDBAdapter) Close() error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (a *DuckDBAdapter) Exec(ctx context.Context, sqlStr string) error {
	if a.db == nil {
		return fmt.Errorf("database connection not established")
	}

	if _, err := a.db.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}

	return nil
}

// Query executes a SQL statement that returns rows.
func (a *DuckDBAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*Rows, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := a.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	return &Rows{Rows: rows}, nil
}

// GetTableMetadata retrieves metadata for a table in the main schema.
func (a *DuckDBAdapter) GetTableMetadata(ctx context.Context, table string) (*Metadata, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	query := `
		SELECT
			column_name,
			data_type,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := a.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	var rowCount int64
	countQuery := "SELECT COUNT(*) FROM " + QuoteIdent(table) //nolint:gosec // identifier is quoted
	if err := a.db.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}

	return &Metadata{
		Name:     table,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}

// LoadCSV replaces table with the rows of a delimited file. The file must
// carry a header line.
func (a *DuckDBAdapter) LoadCSV(ctx context.Context, table string, filePath string, opts CSVOptions) error {
	if a.db == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	args := []string{QuoteLiteral(absPath), "header=true"}
	if opts.Delimiter != "" {
		args = append(args, "delim="+QuoteLiteral(opts.Delimiter))
	}
	if opts.AllVarchar {
		args = append(args, "all_varchar=true")
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv(%s)",
		QuoteIdent(table),
		strings.Join(args, ", "),
	)

	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}

	return nil
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ensure DuckDBAdapter implements Adapter interface
var _ Adapter = (*DuckDBAdapter)(nil)
