package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsort/internal/cli/config"
	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/dataset"
	"github.com/leapstack-labs/leapsort/internal/loader"
	"github.com/leapstack-labs/leapsort/internal/synth"
)

// watchDebounce groups bursts of writes to a table into one rebuild.
var watchDebounce = 500 * time.Millisecond

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Mode        string
	Datasets    []string
	Workers     int
	OnCollision string
	Watch       bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build label-partitioned datasets",
		Long: `Copy every file listed in a metadata table into <data_dir>/<dataset>/<label>/.

In dummy mode a synthetic input tree is generated first and labelled by weight.
In real mode each configured dataset is read from its metadata table.
The dataset directory is deleted before it is rebuilt.`,
		Example: `  # Build the synthetic dataset
  leapsort build

  # Build every configured dataset from its metadata table
  leapsort build --mode real

  # Build one dataset with 8 copy workers and rebuild when its table changes
  leapsort build --mode real --dataset dataset_train --workers 8 --watch

  # Emit JSON lines for CI
  leapsort build --mode real --output json`,
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Run mode: dummy|test|real|normal (default from config)")
	cmd.Flags().StringSliceVarP(&opts.Datasets, "dataset", "d", nil, "Datasets to build in real mode (default: all)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Concurrent file copies (default from config)")
	cmd.Flags().StringVar(&opts.OnCollision, "on-collision", "", "Duplicate destination handling: error|warn|overwrite")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rebuild a dataset whenever its metadata table changes (real mode)")

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"dummy", "test", "real", "normal"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("on-collision", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"error", "warn", "overwrite"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("dataset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return getConfig().DatasetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	b, err := newBuilder(cmd, cctx, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Watch {
		if b.mode != dataset.ModeReal {
			return fmt.Errorf("%w: --watch needs real mode", dataset.ErrConfig)
		}
		return b.watch(ctx, b.names)
	}

	results, err := b.run(ctx, b.names)
	b.summarize(results)
	return err
}

// builder turns configured datasets into driver jobs.
type builder struct {
	cfg    *config.Config
	logger *slog.Logger
	r      *output.Renderer
	driver *dataset.Driver

	mode  dataset.Mode
	names []string
}

func newBuilder(cmd *cobra.Command, cctx *CommandContext, opts *BuildOptions) (*builder, error) {
	cfg := cctx.Cfg
	flags := cmd.Flags()

	modeName := cfg.Mode
	if flags.Changed("mode") {
		modeName = opts.Mode
	}
	mode, err := dataset.ParseMode(modeName)
	if err != nil {
		return nil, err
	}

	policyName := cfg.OnCollision
	if flags.Changed("on-collision") {
		policyName = opts.OnCollision
	}
	policy, err := dataset.ParseCollisionPolicy(policyName)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if flags.Changed("workers") {
		workers = opts.Workers
	}
	if workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative, got %d", dataset.ErrConfig, workers)
	}

	names, err := selectDatasets(cfg, mode, opts.Datasets)
	if err != nil {
		return nil, err
	}

	return &builder{
		cfg:    cfg,
		logger: cctx.Logger,
		r:      cctx.Renderer,
		driver: dataset.NewDriver(dataset.Config{
			Workers:     workers,
			OnCollision: policy,
			Observer:    cctx.Renderer.NewProgress(),
			Store:       cctx.Store,
			Logger:      cctx.Logger,
		}),
		mode:  mode,
		names: names,
	}, nil
}

// selectDatasets returns the datasets to build in configuration order.
func selectDatasets(cfg *config.Config, mode dataset.Mode, requested []string) ([]string, error) {
	if mode == dataset.ModeDummy {
		for _, name := range requested {
			if name != cfg.Dummy.Name {
				return nil, fmt.Errorf("%w: dummy mode only builds %q, not %q", dataset.ErrConfig, cfg.Dummy.Name, name)
			}
		}
		return []string{cfg.Dummy.Name}, nil
	}

	all := cfg.DatasetNames()
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no datasets configured\nHint: add a datasets section to leapsort.yaml", dataset.ErrConfig)
	}
	if len(requested) == 0 {
		return all, nil
	}
	for _, name := range requested {
		if !slices.Contains(all, name) {
			return nil, fmt.Errorf("%w: unknown dataset %q (available: %s)", dataset.ErrConfig, name, strings.Join(all, ", "))
		}
	}
	var names []string
	for _, name := range all {
		if slices.Contains(requested, name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// run builds the named datasets in order and stops at the first failure.
func (b *builder) run(ctx context.Context, names []string) ([]*dataset.Result, error) {
	if b.mode == dataset.ModeReal {
		if err := b.cfg.ValidateTables(names...); err != nil {
			return nil, err
		}
	}

	var results []*dataset.Result
	for _, name := range names {
		job, err := b.job(ctx, name)
		if err != nil {
			return results, err
		}
		res, err := b.driver.Run(ctx, job)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, fmt.Errorf("build %s: %w", name, err)
		}
	}
	return results, nil
}

// job produces the table for one dataset.
func (b *builder) job(ctx context.Context, name string) (dataset.Job, error) {
	job := dataset.Job{Name: name, Root: b.cfg.DatasetRoot(name), Mode: b.mode}

	if b.mode == dataset.ModeDummy {
		sc := b.cfg.Dummy.Synth()
		sc.Logger = b.logger
		gen, err := synth.Generate(sc)
		if err != nil {
			return job, fmt.Errorf("generate %s: %w", name, err)
		}
		job.Table = gen.Table
		return job, nil
	}

	ds, ok := b.cfg.FindDataset(name)
	if !ok {
		return job, fmt.Errorf("%w: unknown dataset %q", dataset.ErrConfig, name)
	}
	loaded, err := loader.New(b.logger).Load(ctx, ds.Source())
	if err != nil {
		return job, fmt.Errorf("load %s: %w", name, err)
	}
	job.Table = loaded.Table
	job.Dropped = loaded.Dropped
	return job, nil
}

// watch builds once, then rebuilds a dataset each time its table is written.
// Build failures are reported and watching continues.
func (b *builder) watch(ctx context.Context, names []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	tables := make(map[string]string, len(names))
	for _, name := range names {
		ds, _ := b.cfg.FindDataset(name)
		table := filepath.Clean(ds.Table)
		tables[table] = name
		dir := filepath.Dir(table)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("%w: cannot watch %s: %w", dataset.ErrInputMissing, dir, err)
		}
	}

	b.rebuild(ctx, names)
	b.r.Muted(fmt.Sprintf("Watching %d metadata table(s) for changes. Press Ctrl+C to stop", len(tables)))

	pending := make(map[string]bool)
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only handle write/create events for watched tables
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, ok := tables[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			pending[name] = true
			debounce = time.After(watchDebounce)

		case <-debounce:
			debounce = nil
			var changed []string
			for _, name := range names {
				if pending[name] {
					changed = append(changed, name)
				}
			}
			clear(pending)
			b.logger.Info("metadata table changed", "datasets", changed)
			b.rebuild(ctx, changed)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logger.Warn("watcher error", "error", err.Error())
		}
	}
}

func (b *builder) rebuild(ctx context.Context, names []string) {
	results, err := b.run(ctx, names)
	b.summarize(results)
	if err != nil && !errors.Is(err, context.Canceled) {
		b.r.Error(err.Error())
	}
}

// BuildEvent is the JSON line written for each finished dataset.
type BuildEvent struct {
	Event     string   `json:"event"`
	Dataset   string   `json:"dataset"`
	RunID     string   `json:"run_id,omitempty"`
	Root      string   `json:"root"`
	Phase     string   `json:"phase"`
	Rows      int      `json:"rows"`
	Dropped   int      `json:"dropped"`
	Copied    int      `json:"copied"`
	Bytes     int64    `json:"bytes"`
	Labels    []string `json:"labels"`
	TotalMS   int64    `json:"total_ms"`
	Timestamp string   `json:"timestamp"`
}

func (b *builder) summarize(results []*dataset.Result) {
	renderBuildSummary(b.r, results)
}

// renderBuildSummary writes one line per result in JSON mode and a table otherwise.
func renderBuildSummary(r *output.Renderer, results []*dataset.Result) {
	if len(results) == 0 {
		return
	}

	if r.EffectiveMode() == output.ModeJSON {
		for _, res := range results {
			emitJSONLine(r.Writer(), BuildEvent{
				Event:     "build_complete",
				Dataset:   res.Dataset,
				RunID:     res.RunID,
				Root:      res.Root,
				Phase:     string(res.Phase),
				Rows:      res.Rows,
				Dropped:   res.Dropped,
				Copied:    res.Copied,
				Bytes:     res.Bytes,
				Labels:    res.Labels,
				TotalMS:   res.Duration.Milliseconds(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}
		return
	}

	r.Println("")
	r.Header(2, "Build summary")
	rows := make([][]any, 0, len(results))
	for _, res := range results {
		rows = append(rows, []any{
			res.Dataset,
			len(res.Labels),
			res.Rows,
			res.Dropped,
			res.Copied,
			output.FormatBytes(res.Bytes),
			res.Duration.Round(time.Millisecond).String(),
			string(res.Phase),
		})
	}
	r.Table([]string{"Dataset", "Labels", "Rows", "Dropped", "Copied", "Size", "Duration", "Phase"}, rows)

	for _, res := range results {
		if res.Phase == dataset.PhaseDone {
			r.Success(fmt.Sprintf("%s: %d file(s) in %d label(s) at %s", res.Dataset, res.Copied, len(res.Labels), res.Root))
		}
	}
}

// emitJSONLine writes v as a single JSON line.
func emitJSONLine(w io.Writer, v any) {
	data, _ := json.Marshal(v)
	_, _ = fmt.Fprintln(w, string(data))
}
