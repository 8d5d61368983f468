package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/state"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit   int
	Dataset string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show build history",
		Long: `List recent builds recorded in the state database, or show one run with
the number of files it copied per label.`,
		Example: `  # Recent builds
  leapsort runs --limit 5

  # One run in detail
  leapsort runs 3f0c2a9e-...

  # Latest build of a dataset
  leapsort runs --dataset dataset_train`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().StringVarP(&opts.Dataset, "dataset", "d", "", "Show the latest run of this dataset")

	return cmd
}

// RunInfo is the JSON form of a recorded run.
type RunInfo struct {
	ID          string       `json:"id"`
	Dataset     string       `json:"dataset"`
	Mode        string       `json:"mode"`
	Root        string       `json:"root"`
	Status      string       `json:"status"`
	Phase       string       `json:"phase"`
	Rows        int          `json:"rows"`
	Dropped     int          `json:"dropped"`
	Copied      int          `json:"copied"`
	Bytes       int64        `json:"bytes"`
	StartedAt   string       `json:"started_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
	Error       string       `json:"error,omitempty"`
	Labels      []LabelCount `json:"labels,omitempty"`
}

func runRuns(cmd *cobra.Command, args []string, opts *RunsOptions) error {
	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cctx.Store
	r := cctx.Renderer

	var run *state.Run
	switch {
	case len(args) == 1:
		run, err = store.GetRun(args[0])
		if err != nil {
			return err
		}
	case opts.Dataset != "":
		run, err = store.GetLatestRun(opts.Dataset)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("dataset %s has never been built", opts.Dataset)
		}
	}

	if run != nil {
		labels, err := store.GetRunLabels(run.ID)
		if err != nil {
			return err
		}
		info := toRunInfo(run)
		for _, lc := range labels {
			info.Labels = append(info.Labels, LabelCount{Label: lc.Label, Files: lc.Files})
		}
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(info)
		}
		renderRun(r, &info)
		return nil
	}

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return err
	}
	infos := make([]RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, toRunInfo(run))
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}
	renderRunList(r, infos)
	return nil
}

func toRunInfo(run *state.Run) RunInfo {
	info := RunInfo{
		ID:         run.ID,
		Dataset:    run.Dataset,
		Mode:       run.Mode,
		Root:       run.Root,
		Status:     string(run.Status),
		Phase:      run.Phase,
		Rows:       run.Rows,
		Dropped:    run.Dropped,
		Copied:     run.Copied,
		Bytes:      run.Bytes,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		DurationMS: run.Duration().Milliseconds(),
		Error:      run.Error,
	}
	if run.CompletedAt != nil {
		info.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return info
}

// shortID keeps run IDs readable in tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderRunList(r *output.Renderer, infos []RunInfo) {
	r.Header(1, fmt.Sprintf("Runs (%d)", len(infos)))
	if len(infos) == 0 {
		r.Println("")
		r.Muted("No runs recorded yet. Run `leapsort build` first.")
		return
	}
	r.Println("")

	rows := make([][]any, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []any{
			shortID(info.ID),
			info.Dataset,
			info.Mode,
			info.Status,
			info.Copied,
			info.Dropped,
			info.StartedAt,
			(time.Duration(info.DurationMS) * time.Millisecond).String(),
		})
	}
	r.Table([]string{"ID", "Dataset", "Mode", "Status", "Copied", "Dropped", "Started", "Duration"}, rows)
}

func renderRun(r *output.Renderer, info *RunInfo) {
	r.Header(1, "Run "+info.ID)
	r.Println("")
	r.KeyValue("Dataset", info.Dataset)
	r.KeyValue("Mode", info.Mode)
	r.KeyValue("Root", info.Root)
	r.KeyValue("Status", info.Status)
	r.KeyValue("Phase", info.Phase)
	r.KeyValue("Rows", fmt.Sprint(info.Rows))
	r.KeyValue("Dropped", fmt.Sprint(info.Dropped))
	r.KeyValue("Copied", fmt.Sprintf("%d (%s)", info.Copied, output.FormatBytes(info.Bytes)))
	r.KeyValue("Started", info.StartedAt)
	if info.CompletedAt != "" {
		r.KeyValue("Duration", (time.Duration(info.DurationMS) * time.Millisecond).String())
	}
	if info.Error != "" {
		r.Error(info.Error)
	}

	if len(info.Labels) > 0 {
		r.Println("")
		rows := make([][]any, 0, len(info.Labels))
		for _, lc := range info.Labels {
			rows = append(rows, []any{lc.Label, lc.Files})
		}
		r.Table([]string{"Label", "Files"}, rows, "Total", info.Copied)
	}
}
