package dataset

// pipeline.go - wipe, materialize and copy one dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/leapsort/internal/state"
)

// Phase is a step of a dataset build.
type Phase string

// Build phases, in order. Any phase may move to PhaseFailed.
const (
	PhaseStart      Phase = "start"
	PhaseWipeOutput Phase = "wipe_output"
	PhaseCreateDirs Phase = "create_dirs"
	PhaseCopyFiles  Phase = "copy_files"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Mode selects where the metadata table comes from.
type Mode string

// Run modes.
const (
	ModeDummy Mode = "dummy"
	ModeReal  Mode = "real"
)

// ParseMode accepts dummy/test and real/normal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dummy", "test":
		return ModeDummy, nil
	case "real", "normal":
		return ModeReal, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (expected dummy, test, real or normal)", ErrConfig, s)
	}
}

// Job is one dataset to build.
type Job struct {
	// Name identifies the dataset in logs and run history.
	Name string
	// Root is the dataset root. It is deleted before the build.
	Root string
	// Mode is recorded with the run.
	Mode Mode
	// Table holds the rows to copy. Unlabeled rows are dropped before copying.
	Table *Table
	// Dropped counts rows already removed upstream for a missing label.
	Dropped int
}

// Result describes a finished or failed build.
type Result struct {
	RunID    string
	Dataset  string
	Root     string
	Phase    Phase
	Labels   []string
	Rows     int
	Dropped  int
	Copied   int
	Bytes    int64
	Duration time.Duration
}

// Config holds driver configuration.
type Config struct {
	// Workers bounds concurrent copies (1 = sequential).
	Workers int
	// OnCollision selects duplicate destination handling.
	OnCollision CollisionPolicy
	// Observer receives copy progress (optional).
	Observer Observer
	// Store records run history (optional).
	Store state.Store
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Driver runs the START → WIPE_OUTPUT → CREATE_DIRS → COPY_FILES → DONE
// sequence for each job.
type Driver struct {
	copier   *Copier
	observer Observer
	store    state.Store
	logger   *slog.Logger
}

// NewDriver creates a driver.
func NewDriver(cfg Config) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver
	}
	return &Driver{
		copier: &Copier{
			Workers:     cfg.Workers,
			OnCollision: cfg.OnCollision,
			Observer:    observer,
			Logger:      logger,
		},
		observer: observer,
		store:    cfg.Store,
		logger:   logger,
	}
}

// Run builds one dataset. The root is wiped first; nothing is rolled back on
// failure, so a failed run may leave a partially populated root behind.
func (d *Driver) Run(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	res := &Result{Dataset: job.Name, Root: job.Root, Phase: PhaseStart, Dropped: job.Dropped}
	log := d.logger.With("dataset", job.Name)

	table := job.Table
	if table == nil {
		table = NewTable()
	}
	if n := table.DropUnlabeled(); n > 0 {
		res.Dropped += n
	}
	res.Rows = table.Len()
	if res.Dropped > 0 {
		log.Warn("dropped rows without a label", "count", res.Dropped)
	}

	var run *state.Run
	if d.store != nil {
		var err error
		run, err = d.store.CreateRun(job.Name, string(job.Mode), job.Root)
		if err != nil {
			return res, fmt.Errorf("failed to create run: %w", err)
		}
		res.RunID = run.ID
	}

	log.Info("starting build", "root", job.Root, "rows", res.Rows, "run_id", res.RunID)

	counts, err := d.build(ctx, log, job.Root, table, res)
	res.Duration = time.Since(start)
	if err != nil {
		log.Error("build failed", "phase", res.Phase, "error", err.Error())
		res.Phase = PhaseFailed
	} else {
		log.Info("build completed", "copied", res.Copied, "labels", len(res.Labels), "duration", res.Duration.Round(time.Millisecond))
	}
	d.observer.Finish(err)

	if run != nil {
		status := state.RunStatusCompleted
		errMsg := ""
		if err != nil {
			status = state.RunStatusFailed
			if errors.Is(err, context.Canceled) {
				status = state.RunStatusCancelled
			}
			errMsg = err.Error()
		}
		stats := state.RunStats{
			Phase:   string(res.Phase),
			Rows:    res.Rows,
			Dropped: res.Dropped,
			Copied:  res.Copied,
			Bytes:   res.Bytes,
			Labels:  counts,
		}
		if cerr := d.store.CompleteRun(run.ID, status, stats, errMsg); cerr != nil {
			log.Warn("failed to record run", "run_id", run.ID, "error", cerr.Error())
		}
	}

	return res, err
}

func (d *Driver) build(ctx context.Context, log *slog.Logger, root string, table *Table, res *Result) (map[string]int, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	res.Phase = PhaseWipeOutput
	log.Debug("entering phase", "phase", res.Phase)
	if err := Wipe(root); err != nil {
		return nil, err
	}

	res.Phase = PhaseCreateDirs
	log.Debug("entering phase", "phase", res.Phase)
	if _, err := Materialize(table, root); err != nil {
		return nil, err
	}
	res.Labels = table.Labels()

	res.Phase = PhaseCopyFiles
	log.Debug("entering phase", "phase", res.Phase)
	plan, _, err := d.copier.Plan(table, root)
	if err != nil {
		return nil, err
	}
	d.observer.Start(res.Dataset, len(plan))

	stats, err := d.copier.Execute(ctx, plan)
	res.Copied = stats.Copied
	res.Bytes = stats.Bytes
	if err != nil {
		return nil, err
	}

	res.Phase = PhaseDone
	return NewTable(planRows(plan)...).Counts(), nil
}

func planRows(plan []Transfer) []Row {
	rows := make([]Row, len(plan))
	for i, tr := range plan {
		rows[i] = tr.Row
	}
	return rows
}

// Wipe deletes root recursively if it exists. It refuses to delete a
// filesystem root or the working directory.
func Wipe(root string) error {
	if strings.TrimSpace(root) == "" {
		return fmt.Errorf("%w: empty dataset root", ErrConfig)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve %s: %w", ErrConfig, root, err)
	}
	if filepath.Dir(abs) == abs {
		return fmt.Errorf("%w: refusing to wipe filesystem root %s", ErrConfig, abs)
	}
	if cwd, err := os.Getwd(); err == nil && cwd == abs {
		return fmt.Errorf("%w: refusing to wipe the working directory %s", ErrConfig, abs)
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("%w: failed to wipe %s: %w", ErrIO, abs, err)
	}
	return nil
}
