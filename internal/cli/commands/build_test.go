package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapsort/internal/cli/config"
	"github.com/leapstack-labs/leapsort/internal/cli/testutil"
	"github.com/leapstack-labs/leapsort/internal/dataset"
)

func TestSelectDatasets(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name      string
		mode      dataset.Mode
		requested []string
		want      []string
		wantErr   bool
	}{
		{name: "dummy ignores configured datasets", mode: dataset.ModeDummy, want: []string{"dataset_dummy"}},
		{name: "dummy accepts its own name", mode: dataset.ModeDummy, requested: []string{"dataset_dummy"}, want: []string{"dataset_dummy"}},
		{name: "dummy rejects real datasets", mode: dataset.ModeDummy, requested: []string{"dataset_train"}, wantErr: true},
		{name: "real defaults to all", mode: dataset.ModeReal, want: []string{"dataset_train", "dataset_valid"}},
		{name: "real keeps config order", mode: dataset.ModeReal, requested: []string{"dataset_valid", "dataset_train"}, want: []string{"dataset_train", "dataset_valid"}},
		{name: "real subset", mode: dataset.ModeReal, requested: []string{"dataset_valid"}, want: []string{"dataset_valid"}},
		{name: "real unknown", mode: dataset.ModeReal, requested: []string{"dataset_other"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectDatasets(cfg, tt.mode, tt.requested)
			if tt.wantErr {
				assert.ErrorIs(t, err, dataset.ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectDatasets_NoneConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Datasets = nil

	_, err := selectDatasets(cfg, dataset.ModeReal, nil)
	require.ErrorIs(t, err, dataset.ErrConfig)
	assert.Contains(t, err.Error(), "no datasets configured")
}

func sampleResult() *dataset.Result {
	return &dataset.Result{
		RunID:    "0123abcd-4567",
		Dataset:  "photos",
		Root:     "/tmp/data/photos",
		Phase:    dataset.PhaseDone,
		Labels:   []string{"cat", "dog"},
		Rows:     4,
		Dropped:  1,
		Copied:   4,
		Bytes:    16,
		Duration: 12 * time.Millisecond,
	}
}

func TestRenderBuildSummary_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()

	renderBuildSummary(tr.Renderer, []*dataset.Result{sampleResult()})

	lines := strings.Split(strings.TrimSpace(tr.Output()), "\n")
	require.Len(t, lines, 1)

	var event BuildEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, "build_complete", event.Event)
	assert.Equal(t, "photos", event.Dataset)
	assert.Equal(t, "done", event.Phase)
	assert.Equal(t, 4, event.Copied)
	assert.Equal(t, 1, event.Dropped)
	assert.Equal(t, []string{"cat", "dog"}, event.Labels)
	assert.EqualValues(t, 12, event.TotalMS)
}

func TestRenderBuildSummary_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()

	failed := sampleResult()
	failed.Dataset = "scans"
	failed.Phase = dataset.PhaseFailed
	renderBuildSummary(tr.Renderer, []*dataset.Result{sampleResult(), failed})

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "## Build summary")
	assert.Contains(t, out, "photos: 4 file(s) in 2 label(s)")
	assert.NotContains(t, out, "scans: 4 file(s)", "failed datasets get no success line")
}

func TestRenderBuildSummary_Empty(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	renderBuildSummary(tr.Renderer, nil)
	assert.Empty(t, tr.Output())
}

func TestBuilderWatch_RebuildsOnTableChange(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Cleanup(config.ResetConfig)
	cfg, err := config.LoadConfig(filepath.Join(dir, "leapsort.yaml"), nil)
	require.NoError(t, err)

	old := watchDebounce
	watchDebounce = 50 * time.Millisecond
	t.Cleanup(func() { watchDebounce = old })

	logger := slog.New(slog.DiscardHandler)
	tr := testutil.NewTestRendererMarkdown()
	b := &builder{
		cfg:    cfg,
		logger: logger,
		r:      tr.Renderer,
		driver: dataset.NewDriver(dataset.Config{
			Workers:     1,
			OnCollision: dataset.CollisionError,
			Observer:    tr.NewProgress(),
			Logger:      logger,
		}),
		mode:  dataset.ModeReal,
		names: []string{"photos"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.watch(ctx, b.names) }()

	root := cfg.DatasetRoot("photos")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "dog", "4.jpg"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "initial build")

	table := "file;class\nraw/a/1.jpg;bird\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "photos.csv"), []byte(table), 0o600))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "bird", "1.jpg"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "rebuild after table change")
	assert.NoDirExists(t, filepath.Join(root, "cat"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
