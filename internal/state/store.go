// Package state records dataset build history in SQLite.
// It tracks every run, its outcome and the number of files written per label.
package state

import "time"

// RunStatus is the outcome of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one dataset build.
type Run struct {
	ID          string
	Dataset     string
	Mode        string
	Root        string
	Status      RunStatus
	Phase       string
	Rows        int
	Dropped     int
	Copied      int
	Bytes       int64
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunStats are the counters stored when a run completes.
type RunStats struct {
	Phase   string
	Rows    int
	Dropped int
	Copied  int
	Bytes   int64
	// Labels maps each label to the number of files copied into it.
	Labels map[string]int
}

// LabelCount is the number of files a run wrote for one label.
type LabelCount struct {
	Label string
	Files int
}

// Store persists run history.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(dataset, mode, root string) (*Run, error)
	CompleteRun(id string, status RunStatus, stats RunStats, errMsg string) error
	GetRun(id string) (*Run, error)
	GetLatestRun(dataset string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	GetRunLabels(id string) ([]LabelCount, error)
}
