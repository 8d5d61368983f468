package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	// sqlite driver for the state database.
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// A nil logger discards all output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// every connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.logger.Debug("opened state store", "path", path)
	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema brings the database schema up to date.
func (s *SQLiteStore) InitSchema() error {
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// --- Run operations ---

// CreateRun creates a new run in the running state.
func (s *SQLiteStore) CreateRun(dataset, mode, root string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Dataset:   dataset,
		Mode:      mode,
		Root:      root,
		Status:    RunStatusRunning,
		Phase:     "start",
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("dataset", dataset))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, dataset, mode, root, status, phase, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Mode, run.Root, string(run.Status), run.Phase, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun stores the final status and counters of a run.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, stats RunStats, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`UPDATE runs
		 SET status = ?, phase = ?, rows_total = ?, rows_dropped = ?, files_copied = ?,
		     bytes_copied = ?, completed_at = ?, error = ?
		 WHERE id = ?`,
		string(status), stats.Phase, stats.Rows, stats.Dropped, stats.Copied,
		stats.Bytes, formatTime(time.Now()), errVal, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	for label, files := range stats.Labels {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO run_labels (run_id, label, files) VALUES (?, ?, ?)`,
			id, label, files,
		); err != nil {
			return fmt.Errorf("failed to record label %s: %w", label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, dataset, mode, root, status, phase, rows_total, rows_dropped,
	files_copied, bytes_copied, started_at, completed_at, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*Run, error) {
	run := &Run{}
	var status, startedAt string
	var completedAt, errMsg sql.NullString

	if err := sc.Scan(&run.ID, &run.Dataset, &run.Mode, &run.Root, &status, &run.Phase,
		&run.Rows, &run.Dropped, &run.Copied, &run.Bytes, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	started, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	run.StartedAt = started
	if completedAt.Valid {
		completed, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completedAt.String, err)
		}
		run.CompletedAt = &completed
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetLatestRun retrieves the most recent run for a dataset.
// It returns nil without error when the dataset has never been built.
func (s *SQLiteStore) GetLatestRun(dataset string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE dataset = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		dataset,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRunLabels returns the per-label file counts of a run, sorted by label.
func (s *SQLiteStore) GetRunLabels(id string) ([]LabelCount, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT label, files FROM run_labels WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Files); err != nil {
			return nil, fmt.Errorf("failed to scan run label: %w", err)
		}
		counts = append(counts, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Label < counts[j].Label })
	return counts, nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
