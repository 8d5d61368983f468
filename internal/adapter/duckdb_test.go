package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *DuckDBAdapter {
	t.Helper()
	a := NewDuckDBAdapter()
	require.NoError(t, a.Connect(context.Background(), Config{Path: ":memory:"}))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestDuckDBAdapter_ConnectFileBased(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.duckdb")

	a := NewDuckDBAdapter()
	require.NoError(t, a.Connect(context.Background(), Config{Path: dbPath}))
	defer func() { _ = a.Close() }()

	_, err := os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
}

func TestDuckDBAdapter_Query(t *testing.T) {
	ctx := context.Background()
	a := connect(t)

	require.NoError(t, a.Exec(ctx, `CREATE TABLE files (path VARCHAR, label VARCHAR)`))
	require.NoError(t, a.Exec(ctx, `INSERT INTO files VALUES ('a.txt', 'cat'), ('b.txt', 'dog')`))

	rows, err := a.Query(ctx, `SELECT path, label FROM files WHERE label = ?`, "dog")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var got [][2]string
	for rows.Next() {
		var path, label string
		require.NoError(t, rows.Scan(&path, &label))
		got = append(got, [2]string{path, label})
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][2]string{{"b.txt", "dog"}}, got)
}

func TestDuckDBAdapter_LoadCSV(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    CSVOptions
	}{
		{
			name:    "comma",
			content: "path,Type de document[tag]\n/in/a.png,facture\n/in/b.png,\n",
			opts:    CSVOptions{Delimiter: ",", AllVarchar: true},
		},
		{
			name:    "semicolon",
			content: "path;Type de document[tag]\n/in/a.png;facture\n/in/b.png;\n",
			opts:    CSVOptions{Delimiter: ";", AllVarchar: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := connect(t)

			csvPath := filepath.Join(t.TempDir(), "it's.csv")
			require.NoError(t, os.WriteFile(csvPath, []byte(tt.content), 0o600))

			require.NoError(t, a.LoadCSV(ctx, "metadata", csvPath, tt.opts))

			meta, err := a.GetTableMetadata(ctx, "metadata")
			require.NoError(t, err)
			assert.Equal(t, []string{"path", "Type de document[tag]"}, meta.ColumnNames())
			assert.Equal(t, int64(2), meta.RowCount)
			for _, c := range meta.Columns {
				assert.Equal(t, "VARCHAR", c.Type)
			}
		})
	}
}

func TestDuckDBAdapter_LoadCSV_MissingFile(t *testing.T) {
	a := connect(t)

	err := a.LoadCSV(context.Background(), "metadata", filepath.Join(t.TempDir(), "absent.csv"), CSVOptions{})
	assert.Error(t, err)
}

func TestDuckDBAdapter_GetTableMetadata_NotFound(t *testing.T) {
	a := connect(t)

	_, err := a.GetTableMetadata(context.Background(), "nope")
	assert.Error(t, err)
}

func TestDuckDBAdapter_WithoutConnect(t *testing.T) {
	ctx := context.Background()
	a := NewDuckDBAdapter()

	assert.Error(t, a.Exec(ctx, "SELECT 1"))
	_, err := a.Query(ctx, "SELECT 1")
	assert.Error(t, err)
	_, err = a.GetTableMetadata(ctx, "t")
	assert.Error(t, err)
	assert.Error(t, a.LoadCSV(ctx, "t", "x.csv", CSVOptions{}))
	assert.NoError(t, a.Close(), "close without connect should not error")
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
	assert.Equal(t, `'it''s'`, QuoteLiteral("it's"))
}
