// Package loader reads metadata tables (delimited files mapping a source path
// to a label) into a dataset.Table.
//
// Files are parsed by an in-memory DuckDB with every column read as text.
// Columns are renamed with a per-table mapping, after which a "path" and a
// "label" column must exist.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapsort/internal/adapter"
	"github.com/leapstack-labs/leapsort/internal/dataset"
)

// Canonical column names.
const (
	PathColumn  = "path"
	LabelColumn = "label"
)

const tableName = "metadata"

// Source describes one metadata table on disk.
type Source struct {
	// Path is the delimited file.
	Path string
	// Delimiter separates fields. Empty lets DuckDB sniff it.
	Delimiter string
	// Columns renames raw header names to canonical ones.
	Columns map[string]string
	// LabelSeparator splits multi-tag label cells. The first non-empty tag wins.
	LabelSeparator string
	// BaseDir resolves relative paths. Defaults to the directory of Path.
	BaseDir string
}

// Result is a loaded table plus what was filtered on the way.
type Result struct {
	Table *dataset.Table
	// Dropped counts rows without a usable label.
	Dropped int
	// Columns lists the raw header names in file order.
	Columns []string
}

// Loader reads metadata tables.
type Loader struct {
	logger *slog.Logger
	// newDB opens the engine each table is parsed with.
	newDB func() adapter.Adapter
}

// New creates a Loader. A nil logger discards output.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		logger: logger,
		newDB:  func() adapter.Adapter { return adapter.NewDuckDBAdapter() },
	}
}

// Load reads src into a table. A missing file yields dataset.ErrInputMissing;
// an unreadable table or a rename map that does not produce both canonical
// columns yields dataset.ErrConfig.
func (l *Loader) Load(ctx context.Context, src Source) (*Result, error) {
	info, err := os.Stat(src.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: metadata table %s", dataset.ErrInputMissing, src.Path)
		}
		return nil, fmt.Errorf("%w: failed to stat %s: %w", dataset.ErrIO, src.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: metadata table %s is a directory", dataset.ErrConfig, src.Path)
	}

	log := l.logger.With("table", src.Path)

	db := l.newDB()
	if err := db.Connect(ctx, adapter.Config{Path: ":memory:"}); err != nil {
		return nil, fmt.Errorf("%w: %w", dataset.ErrIO, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.LoadCSV(ctx, tableName, src.Path, adapter.CSVOptions{Delimiter: src.Delimiter, AllVarchar: true}); err != nil {
		return nil, fmt.Errorf("%w: cannot parse %s: %w", dataset.ErrConfig, src.Path, err)
	}

	meta, err := db.GetTableMetadata(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read columns of %s: %w", dataset.ErrConfig, src.Path, err)
	}
	columns := meta.ColumnNames()
	log.Debug("metadata table parsed", "columns", columns, "rows", meta.RowCount)

	pathCol, labelCol, err := Resolve(columns, src.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY rowid",
		adapter.QuoteIdent(pathCol), adapter.QuoteIdent(labelCol), adapter.QuoteIdent(tableName))
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dataset.ErrIO, err)
	}
	defer func() { _ = rows.Close() }()

	baseDir := src.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(src.Path)
	}

	res := &Result{Table: dataset.NewTable(), Columns: columns}
	line := 1
	for rows.Next() {
		line++
		var path, label sql.NullString
		if err := rows.Scan(&path, &label); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %w", dataset.ErrIO, err)
		}

		p := strings.TrimSpace(path.String)
		if p == "" {
			return nil, fmt.Errorf("%w: %s row %d has no path", dataset.ErrConfig, src.Path, line)
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}

		lbl := CleanLabel(label.String, src.LabelSeparator)
		if lbl == "" {
			res.Dropped++
			continue
		}
		res.Table.Rows = append(res.Table.Rows, dataset.Row{Path: p, Label: lbl})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating %s: %w", dataset.ErrIO, src.Path, err)
	}

	if res.Dropped > 0 {
		log.Debug("dropped rows without a label", "dropped", res.Dropped)
	}
	log.Info("metadata table loaded", "rows", res.Table.Len(), "labels", len(res.Table.Labels()))
	return res, nil
}

// Resolve applies the rename map to the raw header and returns the raw names
// of the path and label columns.
func Resolve(columns []string, rename map[string]string) (pathCol, labelCol string, err error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for raw := range rename {
		if !present[raw] {
			missing = append(missing, raw)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", "", fmt.Errorf("%w: renamed column(s) %s not found (available: %s)",
			dataset.ErrConfig, quoteAll(missing), quoteAll(columns))
	}

	canonical := make(map[string]string, len(columns))
	for _, c := range columns {
		name := c
		if to, ok := rename[c]; ok {
			name = to
		}
		if prev, dup := canonical[name]; dup {
			return "", "", fmt.Errorf("%w: columns %q and %q both map to %q", dataset.ErrConfig, prev, c, name)
		}
		canonical[name] = c
	}

	pathCol, okPath := canonical[PathColumn]
	labelCol, okLabel := canonical[LabelColumn]
	if !okPath || !okLabel {
		return "", "", fmt.Errorf("%w: table needs %q and %q columns after renaming (available: %s)",
			dataset.ErrConfig, PathColumn, LabelColumn, quoteAll(columns))
	}
	return pathCol, labelCol, nil
}

// CleanLabel trims a raw label cell. With a separator, the first non-empty tag
// is kept.
func CleanLabel(raw, separator string) string {
	if separator == "" {
		return strings.TrimSpace(raw)
	}
	for _, tag := range strings.Split(raw, separator) {
		if tag = strings.TrimSpace(tag); tag != "" {
			return tag
		}
	}
	return ""
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
